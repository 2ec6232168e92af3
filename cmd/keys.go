package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/fwif/examples/dynamiclist"
	"github.com/conneroisu/fwif/internal/config"
	"github.com/conneroisu/fwif/internal/dispatch"
	"github.com/conneroisu/fwif/internal/keys"
	"github.com/conneroisu/fwif/internal/session"
)

var (
	keysTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#E07A5F"))

	keysActionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			PaddingRight(2)

	keysSequenceStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#10B981"))

	keysDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

var keysYAML bool

var keysCmd = &cobra.Command{
	Use:     "keys",
	Aliases: []string{"k"},
	Short:   "Show the demo's effective key bindings",
	Long: `Print the demo's key bindings after the configured keymap overrides
have been applied.

With --yaml the table is printed as a keymap file, ready to be edited and
passed back with --keymap.

Examples:
  fwif keys
  fwif keys --keymap keymap.yml
  fwif keys --yaml > keymap.yml`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), map[string]string{"keys.keymap": "keymap"})
	},
	RunE: runKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)

	keysCmd.Flags().BoolVar(&keysYAML, "yaml", false, "print the bindings as a keymap file")
	keysCmd.Flags().String("keymap", "", "YAML file of key binding overrides")
}

func runKeys(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	bindings, err := demoBindings(cfg.Keys.Keymap)
	if err != nil {
		return err
	}

	if keysYAML {
		data, err := (&keys.Keymap{Bindings: bindings.Export()}).Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	return writeKeyTable(cmd.OutOrStdout(), bindings)
}

// demoBindings builds the table the demo would run with.
func demoBindings(keymap string) (*keys.Bindings, error) {
	loop, err := dispatch.New(nil, dynamiclist.New(nil), dispatch.Config{}, nil)
	if err != nil {
		return nil, err
	}

	if keymap != "" {
		if err := session.ApplyKeymap(loop.Bindings(), keymap); err != nil {
			return nil, err
		}
	}

	return loop.Bindings(), nil
}

func writeKeyTable(w io.Writer, bindings *keys.Bindings) error {
	title := cases.Title(language.English)

	type row struct{ action, keys string }
	var rows []row
	width := 0
	for _, b := range bindings.All() {
		r := row{action: title.String(strings.ReplaceAll(b.Name, "_", " "))}
		if len(b.Keys) == 0 {
			r.keys = keysDimStyle.Render("(unbound)")
		} else {
			seqs := make([]string, 0, len(b.Keys))
			for _, seq := range b.Keys {
				seqs = append(seqs, keysSequenceStyle.Render(seq.String()))
			}
			r.keys = strings.Join(seqs, keysDimStyle.Render(", "))
		}
		width = max(width, lipgloss.Width(r.action))
		rows = append(rows, r)
	}

	var out strings.Builder
	out.WriteString(keysTitleStyle.Render("Key bindings"))
	out.WriteString("\n\n")
	for _, r := range rows {
		out.WriteString(keysActionStyle.Width(width + 2).Render(r.action))
		out.WriteString(r.keys)
		out.WriteString("\n")
	}

	_, err := fmt.Fprint(w, out.String())
	return err
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sigma-chat/internal/markup"
	"sigma-chat/internal/ui"
)

var (
	renderJSON  bool
	renderWidth int
)

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Render chat markup to the terminal",
	Long: `Parses chat markup (bold, links, headings, bullets, tables) from a file,
or stdin when the file is "-" or omitted, and prints it styled. With --json
the parsed blocks are printed instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) == 0 || args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("read markup: %w", err)
		}

		blocks := markup.Parse(string(data))
		out := cmd.OutOrStdout()
		if renderJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(blocks)
		}
		_, err = fmt.Fprintln(out, ui.RenderBlocks(blocks, renderWidth))
		return err
	},
}

func init() {
	renderCmd.Flags().BoolVar(&renderJSON, "json", false, "Print parsed blocks as JSON")
	renderCmd.Flags().IntVar(&renderWidth, "width", 80, "Wrap width")
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/parser"
	"github.com/youssefsiam38/tagstream/render"
)

var (
	renderHTML     bool
	renderFromJSON bool
	renderMaxParam int
)

var renderCmd = &cobra.Command{
	Use:   "render [file|-]",
	Short: "Render a transcript as terminal text or HTML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := io.Reader(os.Stdin)
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		blocks, err := decodeBlocks(data, renderFromJSON)
		if err != nil {
			return err
		}
		return writeRendered(cmd.OutOrStdout(), blocks, renderHTML, renderMaxParam)
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().BoolVar(&renderHTML, "html", false, "Render sanitized HTML instead of text")
	renderCmd.Flags().BoolVar(&renderFromJSON, "from-json", false, "Input is a JSON block array rather than raw model output")
	renderCmd.Flags().IntVar(&renderMaxParam, "max-param", render.DefaultMaxParamLen, "Truncate parameter values longer than this in HTML")
}

// decodeBlocks reads data either as a JSON block array or as model output.
func decodeBlocks(data []byte, fromJSON bool) ([]content.Block, error) {
	if fromJSON {
		return content.UnmarshalBlocks(data)
	}
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	return parser.Parse(reg, string(data)), nil
}

func writeRendered(w io.Writer, blocks []content.Block, html bool, maxParam int) error {
	if !html {
		_, err := fmt.Fprintln(w, render.Plain(blocks))
		return err
	}
	r, err := render.New(maxParam)
	if err != nil {
		return err
	}
	return r.WriteHTML(w, blocks)
}

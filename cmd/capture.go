package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"memorypal/keeper/internal/capture"
)

var (
	captureForce bool
	captureText  string
	captureTitle string
	captureMeta  string
	captureFrom  string
	captureJSON  bool
)

var captureCmd = &cobra.Command{
	Use:   "capture [url]",
	Short: "Capture a page and queue it for analysis",
	Long: "Fetches the page (or takes its text from --text), stores a page stub and queues an analysis task. " +
		"Honors the autoAnalyze setting unless --force is given. Use --from to capture a list of urls.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var urls []string
		switch {
		case captureFrom != "":
			list, err := capture.ReadURLs(captureFrom)
			if err != nil {
				return err
			}
			urls = list
		case len(args) == 1:
			urls = args
		default:
			return fmt.Errorf("capture needs a url or --from")
		}
		if captureText != "" && len(urls) != 1 {
			return fmt.Errorf("--text works with a single url")
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := newPipeline(ctx, a)
		if err != nil {
			return err
		}
		defer p.Close()

		var outcomes []capture.Outcome
		for _, url := range urls {
			out, err := captureOne(ctx, p, url)
			if err != nil {
				return fmt.Errorf("capturing %s: %w", url, err)
			}
			outcomes = append(outcomes, out)
			if !captureJSON {
				printOutcome(url, out)
			}
		}
		if captureJSON {
			return printJSON(outcomes)
		}
		return nil
	},
}

func captureOne(ctx context.Context, p *pipeline, url string) (capture.Outcome, error) {
	if captureText != "" {
		text, err := readTextArg(captureText)
		if err != nil {
			return capture.Outcome{}, err
		}
		return p.producer.Capture(ctx, url, capture.Capture{Title: captureTitle, Meta: captureMeta, Text: text})
	}
	if captureForce {
		if !capture.IsCapturable(url) {
			return capture.Outcome{Status: capture.StatusSkipped}, nil
		}
		c, err := p.fetcher.Fetch(ctx, url)
		if err != nil {
			return capture.Outcome{}, err
		}
		if captureTitle != "" {
			c.Title = captureTitle
		}
		return p.producer.Capture(ctx, url, c)
	}
	return p.producer.Navigate(ctx, url, p.fetcher.Fetch)
}

// readTextArg returns the text itself, or stdin for "-", or a file's
// contents for "@path".
func readTextArg(arg string) (string, error) {
	switch {
	case arg == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	case len(arg) > 1 && arg[0] == '@':
		data, err := os.ReadFile(arg[1:])
		if err != nil {
			return "", fmt.Errorf("reading text file: %w", err)
		}
		return string(data), nil
	default:
		return arg, nil
	}
}

func printOutcome(url string, out capture.Outcome) {
	switch out.Status {
	case capture.StatusQueued:
		fmt.Printf("queued    %s  page=%s task=%s (%s)\n", url, truncID(out.PageID), truncID(out.TaskID), out.Delivery.Result)
		if out.Stub {
			fmt.Println("          store unavailable, stub saved to fallback file")
		}
	case capture.StatusDeferred:
		fmt.Printf("deferred  %s  page=%s (store unavailable, queued on next serve)\n", url, truncID(out.PageID))
	case capture.StatusUnchanged:
		fmt.Printf("unchanged %s  page=%s\n", url, truncID(out.PageID))
	default:
		fmt.Printf("skipped   %s\n", url)
	}
}

func init() {
	captureCmd.Flags().BoolVar(&captureForce, "force", false, "Capture even when autoAnalyze is off")
	captureCmd.Flags().StringVar(&captureText, "text", "", "Page text instead of fetching: literal, '-' for stdin or '@file'")
	captureCmd.Flags().StringVar(&captureTitle, "title", "", "Page title (overrides the fetched title)")
	captureCmd.Flags().StringVar(&captureMeta, "meta", "", "Meta description, with --text")
	captureCmd.Flags().StringVar(&captureFrom, "from", "", "File with one url per line ('-' for stdin)")
	captureCmd.Flags().BoolVar(&captureJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(captureCmd)
}

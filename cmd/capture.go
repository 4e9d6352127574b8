package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/mindtrail-backend/internal/capture"
	"github.com/yungbote/mindtrail-backend/internal/client"
	"github.com/yungbote/mindtrail-backend/internal/domain"
)

type captureOptions struct {
	context  string
	tags     []string
	template string
	quick    bool
}

func newCaptureCmd(opts *rootOptions) *cobra.Command {
	co := &captureOptions{}
	cmd := &cobra.Command{
		Use:   "capture [text...]",
		Short: "Save a reflection",
		Long: `Save a reflection and print the generated insight.

Text comes from the arguments, or stdin when the only argument is "-".
A template pre-fills the text; arguments are appended below it.

Examples:
  mindtrail capture "Shipped the migration, felt calm" --context work --tag shipping
  mindtrail capture --template daily "Learned how SSE heartbeats work"
  echo "quick note" | mindtrail capture - --quick`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := captureText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return runCapture(cmd, opts, co, text)
		},
	}
	cmd.Flags().StringVarP(&co.context, "context", "c", string(domain.DefaultCaptureContext), "work, career, personal, family or other")
	cmd.Flags().StringSliceVarP(&co.tags, "tag", "t", nil, "tag to attach (repeatable)")
	cmd.Flags().StringVar(&co.template, "template", "", "template key (see `mindtrail templates`)")
	cmd.Flags().BoolVar(&co.quick, "quick", false, "store without generating an insight")
	return cmd
}

func captureText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	}
	return strings.Join(args, " "), nil
}

func runCapture(cmd *cobra.Command, opts *rootOptions, co *captureOptions, text string) error {
	log, err := opts.clientLogger()
	if err != nil {
		return err
	}
	api, err := opts.apiClient(log)
	if err != nil {
		return err
	}
	ctx, traceID := tracedContext(cmd.Context())
	out := cmd.OutOrStdout()

	vm := capture.NewViewModel(log, api)
	if co.template != "" {
		if err := vm.ApplyTemplate(co.template); err != nil {
			return err
		}
		if extra := strings.TrimSpace(text); extra != "" {
			text = vm.State().Text + "\n\n" + extra
		} else {
			text = vm.State().Text
		}
	}
	vm.SetText(text)
	if err := vm.SetContext(co.context); err != nil {
		return err
	}
	for _, tag := range co.tags {
		vm.SetTagInput(tag)
		vm.AddTag()
	}

	state := vm.State()
	if !state.HasText() {
		return errors.New("nothing to capture: provide text, a template, or stdin")
	}

	if co.quick {
		id, err := api.CreateCapture(ctx, client.CaptureInput{
			TextRaw: strings.TrimSpace(state.Text),
			Context: string(state.Context),
			Tags:    state.Tags,
		})
		if err != nil {
			return withTrace(err, traceID)
		}
		fmt.Fprintf(out, "saved %s\n", id)
		return nil
	}

	res, err := vm.Save(ctx)
	if err != nil {
		return withTrace(err, traceID)
	}
	fmt.Fprintf(out, "saved %s\n\n%s\n", res.ID, strings.TrimSpace(res.Insight))
	if len(res.Topics) > 0 {
		fmt.Fprintf(out, "\ntopics: %s\n", strings.Join(res.Topics, ", "))
	}
	return nil
}

func withTrace(err error, traceID string) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.TraceID != "" {
		traceID = apiErr.TraceID
	}
	return fmt.Errorf("%w (trace %s)", err, traceID)
}

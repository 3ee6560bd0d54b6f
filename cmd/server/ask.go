package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shubhsaxena/directory-assistant/internal/kafka"
	"github.com/shubhsaxena/directory-assistant/internal/models"
)

type askOptions struct {
	chatID  string
	asJSON  bool
	verbose bool
	publish bool
}

func newAskCmd(configPath *string) *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question and exit",
		Example: `  directory-assistant ask "Кто знает Python?"
  directory-assistant ask --verbose "какие мероприятия на этой неделе"
  directory-assistant ask --publish --chat 42 "привет"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			req := &models.AskRequest{
				Text:      strings.Join(args, " "),
				ChatID:    opts.chatID,
				RequestID: uuid.NewString(),
			}
			if opts.publish {
				return publishQuestion(cmd, a, req)
			}
			return askLocally(cmd, a, req, opts)
		},
	}

	cmd.Flags().StringVar(&opts.chatID, "chat", "", "chat id to attach to the question")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the full response as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "print intent, confidence and entities")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "send the question to the Kafka questions topic instead of answering it here")
	return cmd
}

func askLocally(cmd *cobra.Command, a *app, req *models.AskRequest, opts askOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := a.openDirectory(ctx)
	if err != nil {
		return err
	}
	orch, err := a.buildOrchestrator(b.dir, nil)
	if err != nil {
		return err
	}

	resp, err := orch.Ask(ctx, req)
	orch.Wait()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if opts.verbose {
		fmt.Fprintf(out, "intent:     %s (%.2f, %s)\n", resp.Intent, resp.Confidence, resp.Source)
		fmt.Fprintf(out, "normalized: %s\n", resp.Metadata.Normalized)
		for _, c := range models.AllEntityCategories {
			if vals := resp.Entities.Get(c); len(vals) > 0 {
				fmt.Fprintf(out, "%-11s %s\n", string(c)+":", strings.Join(vals, ", "))
			}
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, resp.Reply)
	return nil
}

func publishQuestion(cmd *cobra.Command, a *app, req *models.AskRequest) error {
	if len(a.cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("--publish needs kafka brokers in the config")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	producer := kafka.NewQuestionProducer(a.cfg.Kafka, a.logger)
	defer producer.Close()

	if err := producer.PublishQuestion(ctx, req); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s\n", req.RequestID, a.cfg.Kafka.TopicQuestions)
	return nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"supportlog/internal/connectors"
	"supportlog/internal/listener"
	"supportlog/internal/pipeline"
)

var mailFetchCmd = &cobra.Command{
	Use:   "mail:fetch",
	Short: "Fetch new messages from the mailbox into the staging table",
	Args:  cobra.NoArgs,
	RunE:  runMailFetch,
}

var mailProcessCmd = &cobra.Command{
	Use:   "mail:process [MESSAGE_ID]",
	Short: "Parse the logs of staged emails, or of one message",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMailProcess,
}

var mailListenCmd = &cobra.Command{
	Use:   "mail:listen",
	Short: "Poll the mailbox, process and export until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runMailListen,
}

var watchCmd = &cobra.Command{
	Use:   "watch [DIR]",
	Short: "Process log files dropped into a directory (default INBOX_DIR)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

var (
	mailProvider string
	mailLabel    string
	mailMax      int
)

func init() {
	for _, c := range []*cobra.Command{mailFetchCmd, mailProcessCmd} {
		c.Flags().StringVar(&mailProvider, "provider", "", "gmail or imap (default MAIL_LISTENER_PROVIDER)")
		c.Flags().IntVar(&mailMax, "max", 0, "Maximum messages (default from config)")
	}
	mailFetchCmd.Flags().StringVar(&mailLabel, "label", "", "Mailbox or Gmail label (default MAIL_LISTENER_LABEL)")

	rootCmd.AddCommand(mailFetchCmd, mailProcessCmd, mailListenCmd, watchCmd)
}

func (a *app) provider() string {
	p := mailProvider
	if p == "" {
		p = a.cfg.MailListenerProvider
	}
	return strings.ToLower(strings.TrimSpace(p))
}

func runMailFetch(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	connector, err := listener.NewConnector(cmd.Context(), a.provider(), a.cfg)
	if err != nil {
		return err
	}
	label := mailLabel
	if label == "" {
		label = a.cfg.MailListenerLabel
	}
	limit := mailMax
	if limit <= 0 {
		limit = a.cfg.MailListenerFetchMax
	}
	res, err := connectors.NewFetchService(a.db, a.cfg.RawMailDir, connector, a.log).FetchAndStore(cmd.Context(), label, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "fetched %d messages, %d new\n", res.Fetched, res.Stored)
	return nil
}

func runMailProcess(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var results []pipeline.EmailResult
	if len(args) == 1 {
		res, err := a.processor.ProcessByProviderMessageID(cmd.Context(), a.provider(), args[0])
		if err != nil {
			return err
		}
		results = append(results, res)
	} else {
		limit := mailMax
		if limit <= 0 {
			limit = a.cfg.MailListenerProcessBatch
		}
		results, err = a.processor.ProcessPending(cmd.Context(), limit, mailProvider)
		if err != nil {
			return err
		}
	}

	for _, r := range results {
		records := 0
		for _, d := range r.Documents {
			records += len(d.Records)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "email %d %q: %s, %d analyses, %d records\n",
			r.Email.ID, r.Email.Subject, r.Status, len(r.Documents), records)
	}
	return nil
}

func runMailListen(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	a.log.Info("mail listener started",
		zap.String("provider", a.cfg.MailListenerProvider),
		zap.Int("intervalSec", a.cfg.MailListenerIntervalSec))
	return listener.NewService(a.db, a.processor, a.cfg, a.log).Run(cmd.Context())
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	dir := a.cfg.InboxDir
	if len(args) == 1 {
		dir = args[0]
	}
	w := listener.NewWatcher(dir, a.processor, a.log)
	w.OnResult = func(path string, res pipeline.ProcessResult, err error) {
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: analysis %d, %d records\n", path, res.AnalysisID, len(res.Records))
	}
	a.log.Info("watching directory", zap.String("dir", dir))
	return w.Run(cmd.Context())
}

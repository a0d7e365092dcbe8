package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/orgdiag/internal/config"
	"github.com/abhisek/orgdiag/internal/interview"
	"github.com/abhisek/orgdiag/internal/protocol"
)

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run a diagnostic interview in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, _ := cmd.Flags().GetString("company")
		if companyID == "" {
			return errors.New("--company is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		c, err := st.Companies().FindByID(ctx, companyID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if c == nil {
			fmt.Fprintf(out, "Company %q is not registered; recommendations will not be associated.\n"+
				"Register it with: orgdiag company add %s --name <name>\n\n", companyID, companyID)
		}

		orch, err := newOrchestrator(ctx, st, cfg)
		if err != nil {
			return err
		}

		sessionID, _ := cmd.Flags().GetString("session")
		return runInterview(ctx, orch, companyID, sessionID, cmd.InOrStdin(), out)
	},
}

// runInterview reads one answer per line until the interview is finalized
// or input ends.
func runInterview(ctx context.Context, orch *interview.Orchestrator, companyID, sessionID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Fprintln(out, "Diagnóstico organizacional. Digite sua mensagem (Ctrl+D para sair).")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			if sessionID != "" {
				fmt.Fprintf(out, "Interview paused. Resume with --session %s\n", sessionID)
			}
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		res, err := orch.Advance(ctx, interview.AdvanceRequest{
			SessionID: sessionID,
			CallerID:  companyID,
			Utterance: line,
		})
		var (
			processing *protocol.ProcessingError
			violation  *protocol.ContractViolationError
		)
		switch {
		case errors.As(err, &processing), errors.As(err, &violation):
			fmt.Fprintf(out, "Não foi possível processar a mensagem (%v). Tente novamente.\n", err)
			continue
		case err != nil:
			return err
		}
		sessionID = res.SessionID

		if res.Status == protocol.StatusFinalized {
			fmt.Fprintln(out)
			if res.FinalReport != nil {
				fmt.Fprintln(out, *res.FinalReport)
			}
			if res.DiagnosticID != nil {
				fmt.Fprintf(out, "\nDiagnostic saved: %s\n", *res.DiagnosticID)
			}
			return nil
		}
		printQuestion(out, res)
	}
}

func printQuestion(out io.Writer, res *interview.AdvanceResult) {
	if p := res.Progress; p != nil {
		fmt.Fprintf(out, "\n[%d/%d] %s\n", p.CurrentStep, p.TotalSteps, p.StepTitle)
	}
	q := res.NextQuestion
	if q == nil {
		return
	}
	fmt.Fprintln(out, q.Text)
	for i, opt := range q.Options {
		fmt.Fprintf(out, "  %d. %s\n", i+1, opt)
	}
	if q.AnswerType == protocol.AnswerYesNo && len(q.Options) == 0 {
		fmt.Fprintln(out, "  (sim/não)")
	}
}

func init() {
	interviewCmd.Flags().StringP("company", "c", "", "Company id running the interview")
	interviewCmd.Flags().String("session", "", "Resume an existing session")
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/reperto-cdss-client/internal/render"
	"github.com/reperto-cdss-client/internal/workflow"
)

func newAnalyzeCommand(a *app) *cobra.Command {
	var text string
	var grouped bool
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a patient narrative and review suggested rubrics",
		Long: "Runs the full review workflow: the narrative is analyzed by the backend, " +
			"the suggested rubrics are reviewed and confirmed interactively, the confirmed " +
			"subset is scored, and the ranked remedies can be saved as a case.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.warnIfExpired(cmd); err != nil {
				return err
			}

			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			narrative := text
			if narrative == "" {
				var err error
				narrative, err = readNarrative(in, out)
				if err != nil {
					return err
				}
			}

			session, err := workflow.NewSession(a.api, a.logger, a.cfg.Cache.Size)
			if err != nil {
				return err
			}

			if err := session.Analyze(cmd.Context(), narrative); err != nil {
				return userError(err)
			}

			fmt.Fprint(out, render.AnalysisSummary(session.Analysis()))
			if err := reviewLoop(cmd, session, in, out, grouped); err != nil {
				return err
			}
			if session.State() != workflow.StateResults {
				return nil
			}
			return resultsLoop(cmd, session, in, out)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "patient narrative (read interactively when omitted)")
	cmd.Flags().BoolVar(&grouped, "grouped", false, "show rubrics grouped by category")
	return cmd
}

// readNarrative reads narrative lines until a blank line.
func readNarrative(in *bufio.Reader, out io.Writer) (string, error) {
	fmt.Fprintln(out, "Enter the patient narrative (finish with an empty line):")
	var lines []string
	for {
		line, err := in.ReadString('\n')
		trimmed := strings.TrimRight(line, "\n")
		if trimmed == "" || err != nil {
			break
		}
		lines = append(lines, trimmed)
	}
	return strings.Join(lines, "\n"), nil
}

func printRubrics(out io.Writer, session *workflow.Session) {
	for i, r := range session.Rubrics() {
		fmt.Fprintln(out, render.RubricLine(i, r))
	}
}

// reviewLoop drives the review/selection step until the user proceeds to
// scoring or quits.
func reviewLoop(cmd *cobra.Command, session *workflow.Session, in *bufio.Reader, out io.Writer, grouped bool) error {
	var accordion workflow.Accordion

	if grouped {
		fmt.Fprint(out, render.GroupedRubrics(workflow.GroupByCategory(session.Rubrics()), &accordion))
	} else {
		printRubrics(out, session)
	}
	fmt.Fprintln(out, "Commands: t <n> toggle, d <n> delete, g [category] grouped view, p proceed, q quit")

	for session.State() == workflow.StateReviewing {
		line, err := promptLine(in, out, "> ")
		if err != nil {
			return nil
		}

		verb, arg, _ := strings.Cut(line, " ")
		switch verb {
		case "t", "d":
			index, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil {
				fmt.Fprintln(out, "Expected a rubric number.")
				continue
			}
			if verb == "t" {
				err = session.Toggle(index - 1)
			} else {
				err = session.Remove(index - 1)
			}
			if err != nil {
				fmt.Fprintln(out, err.Error())
				continue
			}
			printRubrics(out, session)
		case "g":
			if category := strings.ToUpper(strings.TrimSpace(arg)); category != "" {
				accordion.Toggle(category)
			}
			fmt.Fprint(out, render.GroupedRubrics(workflow.GroupByCategory(session.Rubrics()), &accordion))
		case "p":
			if err := session.Proceed(cmd.Context()); err != nil {
				fmt.Fprintln(out, userError(err).Error())
				continue
			}
		case "q":
			return nil
		case "":
			printRubrics(out, session)
		default:
			fmt.Fprintln(out, "Unknown command.")
		}
	}
	return nil
}

// resultsLoop shows the ranked remedies and handles card expansion and the
// save action.
func resultsLoop(cmd *cobra.Command, session *workflow.Session, in *bufio.Reader, out io.Writer) error {
	expanded := workflow.NewExpandedSet()

	printRemedies(out, session, expanded)
	fmt.Fprintln(out, "Commands: e <n> expand/collapse, s save case, q quit")

	for {
		line, err := promptLine(in, out, "> ")
		if err != nil {
			return nil
		}

		verb, arg, _ := strings.Cut(line, " ")
		switch verb {
		case "e":
			index, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil || index < 1 || index > len(session.Remedies()) {
				fmt.Fprintln(out, "Expected a remedy number.")
				continue
			}
			expanded.Toggle(index - 1)
			printRemedies(out, session, expanded)
		case "s":
			if err := saveCase(cmd, session, in, out); err != nil {
				fmt.Fprintln(out, userError(err).Error())
			}
		case "q":
			return nil
		case "":
			printRemedies(out, session, expanded)
		default:
			fmt.Fprintln(out, "Unknown command.")
		}
	}
}

func printRemedies(out io.Writer, session *workflow.Session, expanded *workflow.ExpandedSet) {
	fmt.Fprintln(out, "Top matched remedies:")
	for i, remedy := range session.Remedies() {
		fmt.Fprintln(out, render.RemedyCard(i, remedy, expanded.IsOpen(i)))
	}
}

func saveCase(cmd *cobra.Command, session *workflow.Session, in *bufio.Reader, out io.Writer) error {
	name, err := promptLine(in, out, "Patient name: ")
	if err != nil {
		return err
	}
	initials, err := promptLine(in, out, "Initials: ")
	if err != nil {
		return err
	}
	specialty, err := promptLine(in, out, "Specialty: ")
	if err != nil {
		return err
	}

	saved, err := session.Save(cmd.Context(), workflow.PatientInfo{
		Name:      name,
		Initials:  initials,
		Specialty: specialty,
		Time:      time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Case saved as %s\n", saved.ID)
	return nil
}

package cmd

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/uniassist/uniassist/internal/agent"
)

// runQuiz generates a quiz on a topic, collects answers interactively
// from stdin and prints the graded report.
func runQuiz() error {
	quizFlags := flag.NewFlagSet("quiz", flag.ContinueOnError)
	quizFlags.SetOutput(os.Stderr)
	numQuestions := quizFlags.Int("n", 5, "Number of questions to generate")

	topic, err := parseQueryArgs(quizFlags, "quiz \"topic\" [-n 5]")
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	fmt.Printf("Generating %d questions on %q...\n\n", *numQuestions, topic)

	quiz, err := a.Assistant.GenerateQuiz(ctx, topic, *numQuestions)
	if err != nil {
		return fmt.Errorf("generating quiz: %w", err)
	}

	answers, err := collectAnswers(quiz, os.Stdin)
	if err != nil {
		return err
	}

	report := a.Assistant.GradeQuiz(quiz, answers)
	printReport(report)
	return nil
}

// collectAnswers presents each question and reads one answer per line.
// An empty line skips the question.
func collectAnswers(quiz *agent.Quiz, in *os.File) (map[int]string, error) {
	scanner := bufio.NewScanner(in)
	answers := make(map[int]string, len(quiz.Questions))

	for i, q := range quiz.Questions {
		fmt.Printf("Question %d: %s\n", i+1, q.Text)

		letters := make([]string, 0, len(q.Options))
		for letter := range q.Options {
			letters = append(letters, letter)
		}
		sort.Strings(letters)
		for _, letter := range letters {
			fmt.Printf("  %s) %s\n", letter, q.Options[letter])
		}

		fmt.Print("Your answer: ")
		if !scanner.Scan() {
			break
		}
		answer := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if answer != "" {
			answers[i+1] = answer
		}
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading answers: %w", err)
	}
	return answers, nil
}

// printReport writes the graded quiz report to stdout.
func printReport(report *agent.GradeReport) {
	fmt.Printf("Score: %.0f%% (%d/%d correct)\n\n",
		report.Score, report.Correct, report.TotalQuestions)

	for _, r := range report.Results {
		mark := "✗"
		if r.IsCorrect {
			mark = "✓"
		}
		fmt.Printf("%s Q%d: %s\n", mark, r.Number, r.Question)
		if !r.IsCorrect {
			fmt.Printf("    your answer: %s, correct: %s\n", r.UserAnswer, r.CorrectAnswer)
		}
	}
}

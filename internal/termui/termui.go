// Package termui draws scan results and runs the confidence survey in a
// terminal.
package termui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"

	"github.com/vbonduro/foodiepass/internal/messages"
	"github.com/vbonduro/foodiepass/internal/store"
	"github.com/vbonduro/foodiepass/internal/survey"
	"github.com/vbonduro/foodiepass/internal/variant"
)

// DefaultPollInterval is how often RunSurvey checks whether the question is
// due.
const DefaultPollInterval = 100 * time.Millisecond

type UI struct {
	out  io.Writer
	tag  language.Tag
	poll time.Duration

	in    io.Reader
	lines chan string
}

func New(in io.Reader, out io.Writer, tag language.Tag) *UI {
	return &UI{out: out, tag: tag, poll: DefaultPollInterval, in: in}
}

func (u *UI) text(key string, args ...any) string {
	return messages.Text(u.tag, key, args...)
}

// Result prints a rendered scan. Image links are printed only for the
// visual policy, matching what the web UI shows.
func (u *UI) Result(v *variant.View) {
	fmt.Fprintf(u.out, "%s · %s\n", u.text(messages.KeyResultDone), u.text(messages.KeyProcessingTime, v.ProcessingTime))
	if v.Empty {
		fmt.Fprintln(u.out, u.text(messages.KeyNoItems))
		return
	}
	fmt.Fprintln(u.out, u.text(messages.KeyItemsFound, len(v.Items)))
	fmt.Fprintln(u.out)

	tw := tabwriter.NewWriter(u.out, 0, 4, 2, ' ', 0)
	for i, it := range v.Items {
		fmt.Fprintf(tw, "%d.\t%s\t%s\t%s\n", i+1, it.TranslatedName, it.OriginalName, it.Price)
		if it.Description != "" {
			fmt.Fprintf(tw, "\t%s\t\t\n", it.Description)
		}
		if it.ImageURL != "" {
			fmt.Fprintf(tw, "\t%s\t\t\n", it.ImageURL)
		}
	}
	_ = tw.Flush()
}

// Error prints the localized message for err and returns it.
func (u *UI) Error(err error) messages.Message {
	msg := messages.For(err, u.tag)
	fmt.Fprintf(u.out, "%s: %s\n", u.text(messages.KeyErrorTitle), msg.Text)
	return msg
}

// List prints one name per line.
func (u *UI) List(names []string) {
	for _, n := range names {
		fmt.Fprintln(u.out, n)
	}
}

// Answers prints recorded survey answers, one per line.
func (u *UI) Answers(records []*store.SurveyRecord) {
	if len(records) == 0 {
		fmt.Fprintln(u.out, u.text(messages.KeyNoAnswers))
		return
	}
	tw := tabwriter.NewWriter(u.out, 0, 4, 2, ' ', 0)
	for _, r := range records {
		answer := u.text(messages.KeySurveyNo)
		if r.HasConfidence {
			answer = u.text(messages.KeySurveyYes)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ScanID, answer, r.SubmittedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

// Confirm asks question until it gets a yes or a no. It returns io.EOF when
// the input ends first.
func (u *UI) Confirm(ctx context.Context, question string) (bool, error) {
	for {
		fmt.Fprintf(u.out, "%s %s ", question, u.text(messages.KeySurveyPromptHint))
		line, err := u.readLine(ctx)
		if err != nil {
			return false, err
		}
		if yes, ok := parseAnswer(line); ok {
			return yes, nil
		}
	}
}

func parseAnswer(line string) (yes, ok bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "예", "네", "ㅇ":
		return true, true
	case "n", "no", "아니오", "아니요", "ㄴ":
		return false, true
	default:
		return false, false
	}
}

// readLine returns the next input line. The scanner goroutine is started on
// first use and lives until the input ends.
func (u *UI) readLine(ctx context.Context) (string, error) {
	if u.lines == nil {
		u.lines = make(chan string)
		go func() {
			defer close(u.lines)
			sc := bufio.NewScanner(u.in)
			for sc.Scan() {
				u.lines <- sc.Text()
			}
		}()
	}
	select {
	case line, ok := <-u.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RunSurvey mounts session, waits for the question to come due and asks it.
// A failed submission is reported and the question asked again. It returns
// nil when the session closes without asking, or once an answer is
// acknowledged.
func (u *UI) RunSurvey(ctx context.Context, session *survey.Session) error {
	session.Mount(ctx)
	if !u.waitOffered(ctx, session) {
		return ctx.Err()
	}

	fmt.Fprintln(u.out)
	fmt.Fprintln(u.out, u.text(messages.KeySurveyTitle))
	for {
		yes, err := u.Confirm(ctx, u.text(messages.KeySurveyQuestion))
		if err != nil {
			return err
		}
		err = session.Answer(ctx, yes)
		switch {
		case err == nil:
			fmt.Fprintln(u.out, u.text(messages.KeySurveyThanks))
			return nil
		case errors.Is(err, survey.ErrNotOffered):
			return nil
		default:
			u.Error(err)
		}
	}
}

// waitOffered reports whether the session reached Offered. It returns false
// when the session closed first or ctx ended.
func (u *UI) waitOffered(ctx context.Context, session *survey.Session) bool {
	ticker := time.NewTicker(u.poll)
	defer ticker.Stop()
	for {
		switch session.State() {
		case survey.Offered:
			return true
		case survey.Closed, survey.Completed:
			return false
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return false
		}
	}
}

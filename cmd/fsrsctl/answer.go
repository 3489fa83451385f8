package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sky-flux/cardsched"
	"github.com/spf13/cobra"
)

// parseRating accepts a button number or a rating name in any case.
func parseRating(s string) (cardsched.Rating, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return cardsched.RatingFromButton(n)
	}
	var r cardsched.Rating
	name := strings.ToUpper(s[:min(1, len(s))]) + strings.ToLower(s[min(1, len(s)):])
	err := r.UnmarshalText([]byte(name))
	return r, err
}

func answerCommand() *cobra.Command {
	var (
		cardID int64
		rating string
		millis int
	)
	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Answer a card",
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			r, err := parseRating(rating)
			if err != nil {
				return err
			}
			states, err := a.sched.SchedulingStates(ctx, cardID)
			if err != nil {
				return err
			}
			card, err := a.sched.AnswerCard(ctx, &cardsched.CardAnswer{
				CardID:            cardID,
				CurrentState:      states.Current,
				NewState:          states.ForRating(r),
				Rating:            r,
				AnsweredAt:        time.Now(),
				MillisecondsTaken: millis,
			})
			if err != nil {
				return err
			}
			return a.printJSON(card)
		}),
	}
	cmd.Flags().Int64VarP(&cardID, "card", "c", 0, "Card ID")
	cmd.Flags().StringVarP(&rating, "rating", "r", "good", "again, hard, good, easy or 1-4")
	cmd.Flags().IntVar(&millis, "millis", 0, "Time taken to answer, in milliseconds")
	_ = cmd.MarkFlagRequired("card")
	return cmd
}

func statesCommand() *cobra.Command {
	var cardID int64
	cmd := &cobra.Command{
		Use:   "states",
		Short: "Show where each rating would take a card",
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			states, err := a.sched.SchedulingStates(ctx, cardID)
			if err != nil {
				return err
			}
			secsUntilRollover := a.sched.Timing().SecsUntilRollover()
			fmt.Fprintf(a.out, "current: %s\n", describe(states.Current, secsUntilRollover))
			for _, r := range cardsched.Ratings {
				fmt.Fprintf(a.out, "%-6s %s\n", r.String()+":", describe(states.ForRating(r), secsUntilRollover))
			}
			return nil
		}),
	}
	cmd.Flags().Int64VarP(&cardID, "card", "c", 0, "Card ID")
	_ = cmd.MarkFlagRequired("card")
	return cmd
}

func describe(s cardsched.CardState, secsUntilRollover int) string {
	ivl := cardsched.StateInterval(s).MaybeAsDays(secsUntilRollover)
	if days, ok := ivl.Days(); ok {
		return fmt.Sprintf("%T in %dd", s, days)
	}
	secs, _ := ivl.Secs()
	return fmt.Sprintf("%T in %s", s, time.Duration(secs)*time.Second)
}

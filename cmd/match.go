////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/anonymatch/client/matching"
	"gitlab.com/anonymatch/client/models"
	"gitlab.com/anonymatch/client/rest"
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Show the next match candidate and optionally send a request",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, acceptFlag)
		client := loadSignedInClient()

		candidate, err := client.Matching().FindNext(context.Background())
		if err == rest.ErrNoMatch {
			fmt.Println("Nobody new right now. Check back later.")
			return
		}
		if err != nil {
			jww.FATAL.Panicf("Match search failed: %+v", err)
		}

		fmt.Printf("%s, %d (%s)\n",
			candidate.FirstName, candidate.Age, candidate.ID)
		for _, interest := range candidate.Interests {
			fmt.Printf("  - %s\n", interest)
		}

		if viper.GetBool(acceptFlag) {
			err = client.Matching().SendRequest(
				context.Background(), candidate.ID)
			if err != nil {
				jww.FATAL.Panicf("Match request failed: %+v", err)
			}
			fmt.Println("Match request sent.")
		}
	},
}

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List matches and respond to pending requests",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, acceptFlag, declineFlag, matchFlag)
		client := loadSignedInClient()

		matcher := client.Matching()
		matchID := viper.GetString(matchFlag)
		switch {
		case viper.GetBool(acceptFlag):
			respond(matcher, matcher.Accept, matchID, "accepted")
		case viper.GetBool(declineFlag):
			respond(matcher, matcher.Decline, matchID, "declined")
		default:
			listMatches(matcher)
		}
	},
}

// respond looks the match up in the history and applies the accept or
// decline action, so the response rules run against the real match record.
func respond(matcher *matching.Service,
	action func(context.Context, models.Match) error, matchID, verb string) {
	if matchID == "" {
		jww.FATAL.Panicf("A match ID is required to respond.")
	}

	matches, err := matcher.History(context.Background())
	if err != nil {
		jww.FATAL.Panicf("Failed to fetch the match history: %+v", err)
	}
	for _, m := range matches {
		if m.ID == matchID {
			if err = action(context.Background(), m); err != nil {
				jww.FATAL.Panicf("Failed to respond to match %s: %+v",
					matchID, err)
			}
			fmt.Printf("Match %s %s.\n", matchID, verb)
			return
		}
	}
	jww.FATAL.Panicf("Match %s is not in the history.", matchID)
}

func listMatches(matcher *matching.Service) {
	split, err := matcher.SplitHistory(context.Background())
	if err != nil {
		jww.FATAL.Panicf("Failed to fetch the match history: %+v", err)
	}

	if len(split.PendingReceived) > 0 {
		fmt.Println("Requests waiting for you:")
		for _, m := range split.PendingReceived {
			fmt.Printf("  %s  %s\n", m.ID, m.OtherUser.DisplayName())
		}
	}
	if len(split.PendingSent) > 0 {
		fmt.Println("Requests you sent:")
		for _, m := range split.PendingSent {
			fmt.Printf("  %s  %s\n", m.ID, m.OtherUser.DisplayName())
		}
	}
	if len(split.Accepted) > 0 {
		fmt.Println("Matches:")
		for _, m := range split.Accepted {
			fmt.Printf("  %s  %s\n", m.ID, m.OtherUser.DisplayName())
		}
	}
	if len(split.PendingReceived) == 0 && len(split.PendingSent) == 0 &&
		len(split.Accepted) == 0 {
		fmt.Println("No matches yet.")
	}
}

func init() {
	findCmd.Flags().BoolP(acceptFlag, "a", false,
		"Send a match request to the shown candidate")

	matchesCmd.Flags().BoolP(acceptFlag, "a", false, "Accept the match")
	matchesCmd.Flags().BoolP(declineFlag, "d", false, "Decline the match")
	matchesCmd.Flags().StringP(matchFlag, "m", "",
		"Match ID to respond to")

	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(matchesCmd)
}

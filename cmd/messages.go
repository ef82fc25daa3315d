////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/anonymatch/client/models"
	"gitlab.com/anonymatch/client/rest"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List conversations, most recent first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := loadSignedInClient()

		err := client.Conversations().Refresh(context.Background())
		if err != nil {
			jww.FATAL.Panicf("Failed to fetch conversations: %+v", err)
		}

		convs := client.Conversations().Conversations()
		if len(convs) == 0 {
			fmt.Println("No conversations yet.")
			return
		}
		for _, conv := range convs {
			marker := " "
			if conv.Unread {
				marker = "*"
			}
			fmt.Printf("%s %s  %s: %s\n", marker, conv.MatchID,
				conv.OtherUser.DisplayName(), conv.LastMessage.Content)
		}
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open a conversation and chat interactively",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, matchFlag, messageFlag)
		client := loadSignedInClient()

		matchID := viper.GetString(matchFlag)
		if matchID == "" {
			jww.FATAL.Panicf("A match ID is required to chat.")
		}

		chatSession, err := client.OpenChat(context.Background(), matchID)
		if err != nil {
			jww.FATAL.Panicf("Failed to open the chat: %+v", err)
		}
		defer chatSession.Close()

		selfID := client.Session().User().ID
		partner := chatSession.Partner()
		fmt.Printf("Chatting with %s. Blank line or EOF quits.\n",
			partner.DisplayName())
		for _, msg := range chatSession.Messages() {
			printMessage(msg, selfID, partner)
		}

		// Live messages from the partner print as they arrive; own messages
		// print when the server echo lands.
		seen := len(chatSession.Messages())
		chatSession.OnMessages(func(msgs []models.Message) {
			for ; seen < len(msgs); seen++ {
				printMessage(msgs[seen], selfID, partner)
			}
		})

		// One-shot send mode.
		if text := viper.GetString(messageFlag); text != "" {
			if err = chatSession.Send(context.Background(), text); err != nil {
				jww.FATAL.Panicf("Send failed: %+v", err)
			}
			return
		}

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				return
			}
			err = chatSession.Send(context.Background(), line)
			if err == rest.ErrEmptyMessage {
				continue
			}
			if err != nil {
				// The typed line is echoed back so it is not lost.
				jww.ERROR.Printf("Send failed: %+v", err)
				fmt.Printf("[not sent] %s\n", line)
			}
		}
	},
}

func printMessage(msg models.Message, selfID string, partner models.User) {
	name := partner.FirstName
	if msg.SenderID == selfID {
		name = "you"
	}
	fmt.Printf("[%s] %s: %s\n",
		msg.CreatedAt.Format("15:04"), name, msg.Content)
}

func init() {
	chatCmd.Flags().StringP(matchFlag, "m", "", "Match ID to chat in")
	chatCmd.Flags().String(messageFlag, "",
		"Send one message and exit instead of chatting interactively")

	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(chatCmd)
}

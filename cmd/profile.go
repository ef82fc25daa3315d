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
	"strings"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/anonymatch/client/models"
	"gitlab.com/anonymatch/client/rest"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update the signed-in profile",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, bioFlag, interestsFlag)
		client := loadSignedInClient()

		update := rest.ProfileUpdate{Bio: viper.GetString(bioFlag)}
		if interests := viper.GetString(interestsFlag); interests != "" {
			update.Interests = strings.Split(interests, ",")
		}

		if update.Bio != "" || len(update.Interests) > 0 {
			user, err := client.REST().UpdateProfile(
				context.Background(), update)
			if err != nil {
				jww.FATAL.Panicf("Profile update failed: %+v", err)
			}
			fmt.Println("Profile updated.")
			printProfile(user)
			return
		}

		user, err := client.REST().Profile(context.Background())
		if err != nil {
			jww.FATAL.Panicf("Failed to fetch the profile: %+v", err)
		}
		printProfile(user)
	},
}

func printProfile(user *models.User) {
	fmt.Printf("%s (%s)\n", user.DisplayName(), user.ID)
	if user.Age > 0 {
		fmt.Printf("Age: %d\n", user.Age)
	}
	if user.Bio != "" {
		fmt.Printf("Bio: %s\n", user.Bio)
	}
	if len(user.Interests) > 0 {
		fmt.Printf("Interests: %s\n", strings.Join(user.Interests, ", "))
	}
}

func init() {
	profileCmd.Flags().String(bioFlag, "", "Replace the profile bio")
	profileCmd.Flags().String(interestsFlag, "",
		"Replace the interests, comma separated")

	rootCmd.AddCommand(profileCmd)
}

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

	"gitlab.com/anonymatch/client/rest"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, emailFlag, authPasswordFlag)
		client := initClient()

		err := client.Login(context.Background(),
			viper.GetString(emailFlag), viper.GetString(authPasswordFlag))
		if err != nil {
			jww.FATAL.Panicf("Login failed: %+v", err)
		}

		user := client.Session().User()
		fmt.Printf("Signed in as %s (%s)\n", user.DisplayName(), user.ID)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign it in",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, emailFlag, authPasswordFlag, firstNameFlag,
			lastNameFlag, birthDateFlag)
		client := initClient()

		err := client.Register(context.Background(), rest.RegisterRequest{
			Email:     viper.GetString(emailFlag),
			Password:  viper.GetString(authPasswordFlag),
			FirstName: viper.GetString(firstNameFlag),
			LastName:  viper.GetString(lastNameFlag),
			BirthDate: viper.GetString(birthDateFlag),
		})
		if err != nil {
			jww.FATAL.Panicf("Registration failed: %+v", err)
		}

		user := client.Session().User()
		fmt.Printf("Registered and signed in as %s (%s)\n",
			user.DisplayName(), user.ID)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := initClient()
		if !client.LoadSession() {
			fmt.Println("Not signed in.")
			return
		}
		client.Logout()
		fmt.Println("Signed out.")
	},
}

// bindFlags binds the named flags of the running command into viper. Shared
// flag names are bound at run time so sibling commands can reuse them.
func bindFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}

func init() {
	loginCmd.Flags().StringP(emailFlag, "e", "", "Account email address")
	loginCmd.Flags().String(authPasswordFlag, "", "Account password")

	registerCmd.Flags().StringP(emailFlag, "e", "", "Account email address")
	registerCmd.Flags().String(authPasswordFlag, "", "Account password")
	registerCmd.Flags().String(firstNameFlag, "", "First name")
	registerCmd.Flags().String(lastNameFlag, "", "Last name")
	registerCmd.Flags().String(birthDateFlag, "",
		"Birth date, formatted YYYY-MM-DD")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
}

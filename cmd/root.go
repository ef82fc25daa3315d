////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/anonymatch/client/api"
)

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands.
// It prints the state of the stored session.
var rootCmd = &cobra.Command{
	Use:   "anonymatch",
	Short: "Command line client for the AnonyMatch dating service",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := initClient()
		if !client.LoadSession() {
			fmt.Println("Not signed in.")
			return
		}
		user := client.Session().User()
		fmt.Printf("Signed in as %s (%s)\n", user.DisplayName(), user.ID)
	},
}

// initClient builds an api.Client from the persistent flags. All subcommands
// start here.
func initClient() *api.Client {
	initLog(viper.GetUint(logLevelFlag), viper.GetString(logFlag))

	params := api.GetDefaultParams()
	params.ServerURL = viper.GetString(serverFlag)
	params.StorageDir = viper.GetString(sessionFlag)
	params.StoragePassword = viper.GetString(passwordFlag)
	if interval := viper.GetDuration(pollIntervalFlag); interval > 0 {
		params.PollInterval = interval
	}

	client, err := api.NewClient(params)
	if err != nil {
		jww.FATAL.Panicf("Failed to create client: %+v", err)
	}
	return client
}

// loadSignedInClient builds the client and restores the stored session,
// exiting when there is none.
func loadSignedInClient() *api.Client {
	client := initClient()
	if !client.LoadSession() {
		jww.FATAL.Panicf("Not signed in; run the login command first.")
	}
	return client
}

func initLog(threshold uint, logPath string) {
	if logPath != "-" && logPath != "" {
		// Disable stdout output
		jww.SetStdoutOutput(io.Discard)
		// Use log file
		logOutput, err := os.OpenFile(logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err.Error())
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold > 1 {
		jww.INFO.Printf("log level set to: TRACE")
		jww.SetStdoutThreshold(jww.LevelTrace)
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else if threshold == 1 {
		jww.INFO.Printf("log level set to: DEBUG")
		jww.SetStdoutThreshold(jww.LevelDebug)
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		jww.SetStdoutThreshold(jww.LevelInfo)
		jww.SetLogThreshold(jww.LevelInfo)
	}
}

func initConfig() {}

// init is the initialization function for Cobra which defines commands
// and flags.
func init() {
	cobra.OnInitialize(initConfig)

	viper.SetEnvPrefix("anonymatch")

	rootCmd.PersistentFlags().StringP(serverFlag, "u",
		"http://localhost:3000",
		"Base URL of the AnonyMatch backend (env ANONYMATCH_SERVER)")
	viper.BindPFlag(serverFlag, rootCmd.PersistentFlags().Lookup(serverFlag))
	viper.BindEnv(serverFlag)

	rootCmd.PersistentFlags().StringP(sessionFlag, "s", "",
		"Sets the storage directory for client session data")
	viper.BindPFlag(sessionFlag, rootCmd.PersistentFlags().Lookup(sessionFlag))

	rootCmd.PersistentFlags().StringP(passwordFlag, "p", "",
		"Password to the session file")
	viper.BindPFlag(passwordFlag,
		rootCmd.PersistentFlags().Lookup(passwordFlag))

	rootCmd.PersistentFlags().UintP(logLevelFlag, "v", 0,
		"Verbose mode for debugging")
	viper.BindPFlag(logLevelFlag,
		rootCmd.PersistentFlags().Lookup(logLevelFlag))

	rootCmd.PersistentFlags().StringP(logFlag, "l", "-",
		"Path to the log output path (- is stdout)")
	viper.BindPFlag(logFlag, rootCmd.PersistentFlags().Lookup(logFlag))

	rootCmd.PersistentFlags().Duration(pollIntervalFlag, 30*time.Second,
		"Unread reconciliation poll period")
	viper.BindPFlag(pollIntervalFlag,
		rootCmd.PersistentFlags().Lookup(pollIntervalFlag))
}

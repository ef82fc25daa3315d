////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

// CLI flag name constants. Root level flags at the top, subcommand flags
// below. Pulling flags through Viper should use the constants defined here.
const (
	//////////////// Root flags ///////////////////////////////////////////////

	// Server flags
	serverFlag       = "server"
	pollIntervalFlag = "pollInterval"

	// Storage flags
	sessionFlag  = "session"
	passwordFlag = "password"

	// Log flags
	logLevelFlag = "logLevel"
	logFlag      = "log"

	///////////////// Auth subcommand flags ///////////////////////////////////
	emailFlag        = "email"
	authPasswordFlag = "authPassword"
	firstNameFlag    = "firstName"
	lastNameFlag     = "lastName"
	birthDateFlag    = "birthDate"

	///////////////// Matches subcommand flags ////////////////////////////////
	acceptFlag  = "accept"
	declineFlag = "decline"

	///////////////// Chat subcommand flags ///////////////////////////////////
	matchFlag   = "match"
	messageFlag = "message"

	///////////////// Profile subcommand flags ////////////////////////////////
	bioFlag       = "bio"
	interestsFlag = "interests"
)

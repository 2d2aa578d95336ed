// Package cli contains all business logic needed by the lexicam command.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	configFlag = "config"
	debugFlag  = "debug"

	// Command flags.
	flagMetricsAddr = "metrics-addr"
	flagCommit      = "commit"
	flagJSON        = "json"
	flagOrientation = "orientation"
	flagMeaning     = "meaning"
	flagLimit       = "limit"
	flagSeed        = "seed"
	flagText        = "text"
	flagID          = "id"
)

var app = &cli.App{
	Name:            "lexicam",
	Usage:           "learn vocabulary from what the camera sees",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    configFlag,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "lookup",
			Usage:     "resolve raw labels against the lexicon",
			ArgsUsage: "<label> [label...]",
			Action:    LookupAction,
		},
		{
			Name:      "replay",
			Usage:     "run a recorded inference session through the label pipeline",
			ArgsUsage: "<recording.jsonl>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagMetricsAddr,
					Usage: "serve prometheus metrics on `ADDR` while replaying",
				},
				&cli.BoolFlag{
					Name:  flagCommit,
					Usage: "save the final published label to the vocabulary store",
				},
				&cli.BoolFlag{
					Name:  flagJSON,
					Usage: "print every snapshot as a JSON line",
				},
			},
			Action: ReplayAction,
		},
		{
			Name:      "detect",
			Usage:     "run the built-in dark object detector over images",
			ArgsUsage: "<image> [image...]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagOrientation,
					Value: "up",
					Usage: "orientation of the images: up, down, left or right",
				},
			},
			Action: DetectAction,
		},
		{
			Name:  "words",
			Usage: "manage the vocabulary store",
			Subcommands: []*cli.Command{
				{
					Name:      "add",
					Usage:     "add a word",
					ArgsUsage: "<term>",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: flagMeaning, Usage: "translation of the term"},
					},
					Action: WordsAddAction,
				},
				{
					Name:   "list",
					Usage:  "list all words",
					Action: WordsListAction,
				},
				{
					Name:      "search",
					Usage:     "find words by term or meaning",
					ArgsUsage: "<query>",
					Action:    WordsSearchAction,
				},
				{
					Name:  "learned",
					Usage: "toggle the learned mark of a word",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: flagID, Required: true, Usage: "word `ID`"},
					},
					Action: WordsToggleAction,
				},
				{
					Name:  "delete",
					Usage: "delete a word",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: flagID, Required: true, Usage: "word `ID`"},
					},
					Action: WordsDeleteAction,
				},
			},
		},
		{
			Name:  "quiz",
			Usage: "print a multiple-choice quiz from the stored words or from a text file",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagText, Usage: "build the quiz from the words of `FILE`"},
				&cli.IntFlag{Name: flagLimit, Value: 6, Usage: "number of questions"},
				&cli.Int64Flag{Name: flagSeed, Usage: "random seed, 0 for a time based one"},
			},
			Action: QuizAction,
		},
		{
			Name:   "schema",
			Usage:  "print the JSON schema of the configuration file",
			Action: SchemaAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

package cli

import (
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"github.com/lexicam/lexicam/vocab"
)

func withStore(c *cli.Context, f func(store vocab.Store) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := openStore(c.Context, cfg.Store)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(func() error { return store.Close(c.Context) })
	return f(store)
}

func wordID(c *cli.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.String(flagID))
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, "invalid word id %q", c.String(flagID))
	}
	return id, nil
}

func printWord(c *cli.Context, w vocab.Word) {
	mark := " "
	if w.Learned {
		mark = "x"
	}
	printf(c.App.Writer, "[%s] %s  %s  %s", mark, w.ID, w.Term, w.Meaning)
}

// printWords prints words as a table, or nothing when there are none.
func printWords(out io.Writer, words []vocab.Word) {
	if len(words) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"ID", "Term", "Meaning", "Learned"})
	for _, w := range words {
		t.AppendRow(table.Row{w.ID, w.Term, w.Meaning, w.Learned})
	}
	t.Render()
}

// WordsAddAction adds a word to the store.
func WordsAddAction(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return errors.New("add needs a term")
	}
	return withStore(c, func(store vocab.Store) error {
		w, err := store.Add(c.Context, vocab.Word{
			Term:    strings.Join(c.Args().Slice(), " "),
			Meaning: c.String(flagMeaning),
		})
		if err != nil {
			return err
		}
		printWord(c, w)
		return nil
	})
}

// WordsListAction prints every stored word, oldest first.
func WordsListAction(c *cli.Context) error {
	return withStore(c, func(store vocab.Store) error {
		words, err := store.List(c.Context)
		if err != nil {
			return err
		}
		printWords(c.App.Writer, words)
		return nil
	})
}

// WordsSearchAction prints the words whose term or meaning contains the query.
func WordsSearchAction(c *cli.Context) error {
	return withStore(c, func(store vocab.Store) error {
		words, err := store.Search(c.Context, strings.Join(c.Args().Slice(), " "))
		if err != nil {
			return err
		}
		printWords(c.App.Writer, words)
		return nil
	})
}

// WordsToggleAction flips the learned mark of a word.
func WordsToggleAction(c *cli.Context) error {
	id, err := wordID(c)
	if err != nil {
		return err
	}
	return withStore(c, func(store vocab.Store) error {
		w, err := store.ToggleLearned(c.Context, id)
		if err != nil {
			return err
		}
		printWord(c, w)
		return nil
	})
}

// WordsDeleteAction removes a word.
func WordsDeleteAction(c *cli.Context) error {
	id, err := wordID(c)
	if err != nil {
		return err
	}
	return withStore(c, func(store vocab.Store) error {
		if err := store.Delete(c.Context, id); err != nil {
			return err
		}
		printf(c.App.Writer, "deleted %s", id)
		return nil
	})
}

// QuizAction prints a quiz followed by its answer key.
func QuizAction(c *cli.Context) error {
	seed := c.Int64(flagSeed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	//nolint:gosec
	rng := rand.New(rand.NewSource(seed))

	var questions []vocab.Question
	if path := c.String(flagText); path != "" {
		//nolint:gosec
		text, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "cannot read text")
		}
		questions = vocab.GenerateFromText(string(text), c.Int(flagLimit), rng)
	} else {
		err := withStore(c, func(store vocab.Store) error {
			words, err := store.List(c.Context)
			if err != nil {
				return err
			}
			questions = vocab.Generate(words, c.Int(flagLimit), rng)
			return nil
		})
		if err != nil {
			return err
		}
	}
	if len(questions) == 0 {
		warningf(c.App.ErrWriter, "not enough words for a quiz")
		return nil
	}

	answers := make([]string, 0, len(questions))
	for i, q := range questions {
		printf(c.App.Writer, "%d. %s", i+1, q.Prompt)
		for j, opt := range q.Options {
			printf(c.App.Writer, "   %c) %s", 'a'+j, opt)
		}
		answers = append(answers, string(rune('a'+q.Answer)))
	}
	printf(c.App.Writer, "answers: %s", strings.Join(answers, " "))
	return nil
}

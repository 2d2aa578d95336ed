package cli

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.viam.com/test"

	"github.com/lexicam/lexicam/session"
	"github.com/lexicam/lexicam/vocab"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"lexicam"}, args...))
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestLookup(t *testing.T) {
	out, _, err := run(t, "lookup", "Cell Phones", "zebra")
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	test.That(t, lines, test.ShouldHaveLength, 2)
	test.That(t, lines[0], test.ShouldStartWith, "Cell Phones: phone (điện thoại)")
	test.That(t, lines[1], test.ShouldEqual, "zebra: not in lexicon")

	_, _, err = run(t, "lookup")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLookupCustomLexicon(t *testing.T) {
	lex := writeFile(t, "lexicon.json", `[{"term": "zebra", "translation": "ngựa vằn"}]`)
	cfg := writeFile(t, "lexicam.json", `{"lexicon": "`+lex+`"}`)
	out, _, err := run(t, "--config", cfg, "lookup", "zebra", "phone")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "zebra: zebra (ngựa vằn)")
	test.That(t, out, test.ShouldContainSubstring, "phone: not in lexicon")

	bad := writeFile(t, "bad.json", `{"stable_needed": 0}`)
	_, _, err = run(t, "-c", bad, "lookup", "zebra")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "stable_needed")
}

func TestSchema(t *testing.T) {
	out, _, err := run(t, "schema")
	test.That(t, err, test.ShouldBeNil)
	var schema map[string]interface{}
	test.That(t, json.Unmarshal([]byte(out), &schema), test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "stable_needed")
}

const detections = `
{"detections": [{"label": "cellphone", "confidence": 0.9, "box": {"x": 0.4, "y": 0.4, "width": 0.2, "height": 0.2}}]}
{"error": "camera busy"}
{"detections": [{"label": "cellphone", "confidence": 0.9, "box": {"x": 0.4, "y": 0.4, "width": 0.2, "height": 0.2}}]}
{"detections": []}
{"detections": [{"label": "charger", "confidence": 0.8, "box": {"x": 0.45, "y": 0.45, "width": 0.1, "height": 0.1}}]}
{"detections": [{"label": "charger", "confidence": 0.8, "box": {"x": 0.45, "y": 0.45, "width": 0.1, "height": 0.1}}]}
`

func TestReplay(t *testing.T) {
	recording := writeFile(t, "session.jsonl", detections)
	out, errOut, err := run(t, "replay", "--metrics-addr", "127.0.0.1:0", recording)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "cycle 1: phone (điện thoại)")
	test.That(t, out, test.ShouldContainSubstring, "cycle 5: charger (sạc)")
	test.That(t, out, test.ShouldContainSubstring, "5 cycles, 2 label changes")
	test.That(t, out, test.ShouldContainSubstring, "published confidence: mean")
	test.That(t, errOut, test.ShouldContainSubstring, "inference failed")
	test.That(t, errOut, test.ShouldContainSubstring, "serving metrics")

	out, _, err = run(t, "replay", "--json", recording)
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	test.That(t, lines, test.ShouldHaveLength, 5)
	var last session.Snapshot
	test.That(t, json.Unmarshal([]byte(lines[4]), &last), test.ShouldBeNil)
	test.That(t, last.Label.Term, test.ShouldEqual, "charger")
	test.That(t, last.Cycle, test.ShouldEqual, 5)

	_, _, err = run(t, "replay")
	test.That(t, err, test.ShouldNotBeNil)
	_, _, err = run(t, "replay", writeFile(t, "bad.jsonl", `{"frames": 1}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 1")
}

func TestReplayCommit(t *testing.T) {
	cfg := writeFile(t, "lexicam.json", `{"inference": {"path": "classifier"}}`)
	recording := writeFile(t, "session.jsonl", `
{"classifications": [{"label": "tool", "confidence": 0.9}, {"label": "mug", "confidence": 0.7}]}
{"classifications": [{"label": "mug", "confidence": 0.8}]}
`)
	out, _, err := run(t, "-c", cfg, "replay", "--commit", recording)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "cycle 1: cup (ly/cốc) 0.70")
	test.That(t, out, test.ShouldContainSubstring, `committed "cup" (ly/cốc) as `)

	low := writeFile(t, "low.jsonl", `{"classifications": [{"label": "mug", "confidence": 0.35}]}`)
	out, errOut, err := run(t, "-c", cfg, "replay", "--commit", low)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldNotContainSubstring, "committed")
	test.That(t, errOut, test.ShouldContainSubstring, "Warning: nothing committed")
}

func writeImage(t *testing.T, name string, dark image.Rectangle) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			c := color.Gray{Y: 255}
			if (image.Point{x, y}).In(dark) {
				c = color.Gray{Y: 0}
			}
			img.SetGray(x, y, c)
		}
	}
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, png.Encode(f, img), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)
	return path
}

func TestDetect(t *testing.T) {
	cfg := writeFile(t, "lexicam.json", `{"inference": {"path": "detector", "attributes": {"label": "mug", "min_area": 0.01}}}`)
	object := writeImage(t, "object.png", image.Rect(7, 7, 13, 13))
	speck := writeImage(t, "speck.png", image.Rect(0, 0, 1, 1))

	out, _, err := run(t, "-c", cfg, "detect", "--orientation", "left", speck, object)
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	test.That(t, lines, test.ShouldHaveLength, 2)
	test.That(t, lines[0], test.ShouldEndWith, "0 objects, no label yet")
	test.That(t, lines[1], test.ShouldContainSubstring, "1 objects, showing cup (ly/cốc)")

	_, _, err = run(t, "-c", cfg, "detect", "--orientation", "sideways", object)
	test.That(t, err, test.ShouldNotBeNil)

	classifier := writeFile(t, "classifier.json", `{"inference": {"path": "classifier"}}`)
	_, _, err = run(t, "-c", classifier, "detect", object)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWords(t *testing.T) {
	out, _, err := run(t, "words", "add", "--meaning", "con mèo", "cat")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldStartWith, "[ ] ")
	test.That(t, out, test.ShouldContainSubstring, "  cat  con mèo")

	// the memory store does not outlive the command
	out, _, err = run(t, "words", "list")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldBeEmpty)

	_, _, err = run(t, "words", "learned", "--id", "not-a-uuid")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid word id")

	_, _, err = run(t, "words", "delete", "--id", "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPrintWords(t *testing.T) {
	var out bytes.Buffer
	printWords(&out, nil)
	test.That(t, out.String(), test.ShouldBeEmpty)

	printWords(&out, []vocab.Word{
		{ID: uuid.New(), Term: "cat", Meaning: "con mèo"},
		{ID: uuid.New(), Term: "cup", Meaning: "ly/cốc", Learned: true},
	})
	test.That(t, out.String(), test.ShouldContainSubstring, "MEANING")
	test.That(t, out.String(), test.ShouldContainSubstring, "con mèo")
	test.That(t, out.String(), test.ShouldContainSubstring, "true")
}

func TestLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "lexicam.log")
	cfg := writeFile(t, "lexicam.json", `{"log_file": "`+logFile+`"}`)
	_, _, err := run(t, "-c", cfg, "replay", writeFile(t, "session.jsonl", detections))
	test.That(t, err, test.ShouldBeNil)
	logs, err := os.ReadFile(logFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(logs), test.ShouldContainSubstring, "inference failed")
}

func TestQuiz(t *testing.T) {
	text := writeFile(t, "story.txt", "The little cat watched the birds by the warm window while they sang.")
	out, _, err := run(t, "quiz", "--text", text, "--limit", "2", "--seed", "7")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "1. Nghĩa của từ: ")
	test.That(t, out, test.ShouldContainSubstring, "2. Nghĩa của từ: ")
	test.That(t, out, test.ShouldNotContainSubstring, "3. ")
	test.That(t, out, test.ShouldContainSubstring, "   d) ")
	test.That(t, out, test.ShouldContainSubstring, "answers: ")

	again, _, err := run(t, "quiz", "--text", text, "--limit", "2", "--seed", "7")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldEqual, out)

	out, errOut, err := run(t, "quiz")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldBeEmpty)
	test.That(t, errOut, test.ShouldContainSubstring, "not enough words")
}

package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kbukum/floq/stream"
)

// WordCount is one word and how often it was seen.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Result is what the pipeline delivers once per window.
type Result struct {
	Window   int64       `json:"window"`
	Messages int         `json:"messages"`
	Words    int         `json:"words"`
	Top      []WordCount `json:"top"`
}

// String renders the result on one line, for the printer and file sinks.
func (r Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "window %d: %d messages, %d words", r.Window, r.Messages, r.Words)
	for i, wc := range r.Top {
		if i == 0 {
			b.WriteString(":")
		}
		fmt.Fprintf(&b, " %s=%d", wc.Word, wc.Count)
	}
	return b.String()
}

// tally is the reduce accumulator.
type tally struct {
	window   int64
	messages int
	words    int
	counts   map[string]int
}

// countWords folds a batch of messages into the tally. In running mode the
// counts carry over from one window to the next. The returned tally never
// shares its map with the previous one.
func countWords(cfg ReduceConfig) stream.FoldFunc[string, tally] {
	running := cfg.Mode == ReduceRunning
	return func(_ context.Context, acc tally, batch stream.Batch[string]) (tally, error) {
		next := tally{window: acc.window + 1, counts: make(map[string]int, len(acc.counts))}
		if running {
			next.messages, next.words = acc.messages, acc.words
			for w, n := range acc.counts {
				next.counts[w] = n
			}
		}
		for _, msg := range batch {
			next.messages++
			for _, w := range splitWords(msg, cfg) {
				next.words++
				next.counts[w]++
			}
		}
		return next, nil
	}
}

// splitWords splits on anything that is not a letter, digit, '#' or '@'.
func splitWords(msg string, cfg ReduceConfig) []string {
	fields := strings.FieldsFunc(msg, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '#' && r != '@' && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f == "" || utf8.RuneCountInString(f) < cfg.MinLength {
			continue
		}
		if cfg.Lowercase {
			f = strings.ToLower(f)
		}
		out = append(out, f)
	}
	return out
}

// toResult ranks the counts, most frequent first and ties alphabetically.
func toResult(top int) func(context.Context, tally) (Result, error) {
	return func(_ context.Context, t tally) (Result, error) {
		ranked := make([]WordCount, 0, len(t.counts))
		for w, n := range t.counts {
			ranked = append(ranked, WordCount{Word: w, Count: n})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].Count != ranked[j].Count {
				return ranked[i].Count > ranked[j].Count
			}
			return ranked[i].Word < ranked[j].Word
		})
		if top > 0 && len(ranked) > top {
			ranked = ranked[:top]
		}
		return Result{Window: t.window, Messages: t.messages, Words: t.words, Top: ranked}, nil
	}
}

// wordCount is the reduce half of the pipeline: it folds each batch and
// ranks the result.
func wordCount(cfg ReduceConfig) stream.Operator[stream.Batch[string], Result] {
	return stream.Then(
		stream.Reduce[string, tally](tally{}, countWords(cfg)),
		stream.Named("rank", stream.MapOne(stream.Each(toResult(cfg.Top)))),
	)
}

package strings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDedupeAndTrim(t *testing.T) {
	t.Run("broker list from an env var", func(t *testing.T) {
		got := DedupeAndTrim(strings.Split("kafka-1:9092, kafka-2:9092 ,kafka-1:9092,", ","))
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, got)
	})

	t.Run("host names are case sensitive here", func(t *testing.T) {
		assert.Equal(t, []string{"Kafka:9092", "kafka:9092"}, DedupeAndTrim([]string{"Kafka:9092", "kafka:9092"}))
	})

	t.Run("nil and blank input", func(t *testing.T) {
		assert.Nil(t, DedupeAndTrim(nil))
		assert.Empty(t, DedupeAndTrim([]string{" ", "\t", ""}))
	})
}

func TestDedupeAndTrim_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.SliceOf(rapid.SampledFrom([]string{"a:1", " a:1", "b:2 ", "", "  ", "c:3"})).Draw(t, "in")
		out := DedupeAndTrim(in)

		seen := map[string]bool{}
		for _, v := range out {
			if v == "" || v != strings.TrimSpace(v) {
				t.Fatalf("untrimmed or empty entry %q", v)
			}
			if seen[v] {
				t.Fatalf("duplicate entry %q", v)
			}
			seen[v] = true
		}
		for _, v := range in {
			if trimmed := strings.TrimSpace(v); trimmed != "" && !seen[trimmed] {
				t.Fatalf("dropped entry %q", trimmed)
			}
		}
	})
}

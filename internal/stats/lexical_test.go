package stats

import (
	"reflect"
	"testing"

	"github.com/MikeSquared-Agency/chatstats/internal/conversation"
)

func lexicalConv() *conversation.Conversation {
	reacted := text("B", 2000, "hi there")
	reacted.Reactions = []conversation.Reaction{{Actor: "A", Emoji: "👍"}}
	return newConv(
		text("A", 3000, "Hello 😀 (edited)"),
		reacted,
		text("A", 1000, "xD hello!"),
	)
}

func TestUsedEmojis(t *testing.T) {
	set := UsedEmojis(lexicalConv())
	for _, e := range []string{"😀", "👍"} {
		if !set.Has(e) {
			t.Errorf("expected %q in emoji set", e)
		}
	}
	if set.Has("h") || set.Has("!") {
		t.Error("letters must not be treated as emoji")
	}
}

func TestAnalyzeLexical_EditedEmojiMessage(t *testing.T) {
	conv := lexicalConv()
	lex := AnalyzeLexical(conv, UsedEmojis(conv))

	if lex.WordTotals["A"] != 3 {
		t.Errorf("A words = %d, want 3", lex.WordTotals["A"])
	}
	if lex.WordTotals["B"] != 2 {
		t.Errorf("B words = %d, want 2", lex.WordTotals["B"])
	}
	for _, c := range lex.Words {
		if c.Key == "(edited)" || c.Key == "edited" || c.Key == "😀" {
			t.Errorf("unexpected word %q", c.Key)
		}
	}

	wantWords := []Count{{"hello", 2}, {"hi", 1}, {"there", 1}, {"xD", 1}}
	if !reflect.DeepEqual(lex.Words, wantWords) {
		t.Errorf("words = %v, want %v", lex.Words, wantWords)
	}

	if len(lex.Emoji) != 1 || lex.Emoji[0] != (Count{"😀", 1}) {
		t.Errorf("emoji = %v, want one 😀", lex.Emoji)
	}
	if lex.EmojiTotals["A"] != 1 {
		t.Errorf("A emoji total = %d, want 1", lex.EmojiTotals["A"])
	}
	if lex.Edits["A"] != 1 || lex.Edits["B"] != 0 {
		t.Errorf("edits = %v", lex.Edits)
	}
}

func TestAnalyzeLexical_Characters(t *testing.T) {
	conv := lexicalConv()
	lex := AnalyzeLexical(conv, UsedEmojis(conv))

	// "Hello 😀" and "xD hello!"
	if lex.CharacterTotals["A"] != 16 {
		t.Errorf("A characters = %d, want 16", lex.CharacterTotals["A"])
	}
	if lex.CharacterTotals["B"] != 8 {
		t.Errorf("B characters = %d, want 8", lex.CharacterTotals["B"])
	}

	top := Top(lex.Characters, 4)
	want := []Count{{"e", 4}, {"h", 4}, {"l", 4}, {"o", 2}}
	if !reflect.DeepEqual(top, want) {
		t.Errorf("top characters = %v, want %v", top, want)
	}
	for _, c := range lex.Characters {
		if c.Key == " " || c.Key == "😀" {
			t.Errorf("unexpected character %q", c.Key)
		}
	}
}

func TestAnalyzeLexical_ReactionsGoToActor(t *testing.T) {
	conv := lexicalConv()
	lex := AnalyzeLexical(conv, UsedEmojis(conv))

	if lex.ReactionTotals["A"] != 1 || lex.ReactionTotals["B"] != 0 {
		t.Errorf("reaction totals = %v", lex.ReactionTotals)
	}
	if got := lex.ReactionsBy["A"]; len(got) != 1 || got[0] != (Count{"👍", 1}) {
		t.Errorf("A reactions = %v", got)
	}
	// Reactions are not content emoji.
	for _, c := range lex.Emoji {
		if c.Key == "👍" {
			t.Error("reaction counted as message emoji")
		}
	}
}

func TestAnalyzeLexical_Idempotent(t *testing.T) {
	conv := lexicalConv()
	first := AnalyzeLexical(conv, UsedEmojis(conv))
	second := AnalyzeLexical(conv, UsedEmojis(conv))
	if !reflect.DeepEqual(first, second) {
		t.Error("two runs over the same conversation differ")
	}
}

func TestWords(t *testing.T) {
	tests := []struct {
		body string
		want []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"XD that was funny xD", []string{"XD", "that", "was", "funny", "xD"}},
		{"(quoted) \"text\"", []string{"quoted", "text"}},
		{"  ...  ", nil},
		{"don't", []string{"don't"}},
	}

	for _, tt := range tests {
		got := Words(tt.body, nil)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Words(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

func TestTopEmojis_PerParticipant(t *testing.T) {
	ranked := []Count{{"😀", 3}, {"😂", 1}}
	by := map[string][]Count{
		"A": {{"😀", 2}},
		"B": {{"😀", 1}, {"😂", 1}},
	}

	got := TopEmojis(ranked, by, []string{"A", "B", "C"}, 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	want := map[string]int{"A": 2, "B": 1, "C": 0}
	if got[0].Emoji != "😀" || got[0].Total != 3 || !reflect.DeepEqual(got[0].PerParticipant, want) {
		t.Errorf("TopEmojis = %+v", got[0])
	}
}

package expr

import (
	"context"
	"encoding/json"
	"testing"

	id "soulbound/pkg/domain"
)

// FuzzParse checks that any expression the parser accepts evaluates
// without error and survives a marshal/parse round trip.
func FuzzParse(f *testing.F) {
	f.Add(`{"class":"a"}`)
	f.Add(`{"and":[{"class":"a"},{"class":"b"}]}`)
	f.Add(`{"or":[{"class":"a"},{"not":{"class":"b"}}]}`)
	f.Add(`{"not":{"not":{"class":"verified-human-v1"}}}`)
	f.Add(`{}`)
	f.Add(`{"and":[]}`)

	pred := func(_ context.Context, classID id.ClassID) (bool, error) {
		return len(classID)%2 == 0, nil
	}

	f.Fuzz(func(t *testing.T, raw string) {
		parsed, err := Parse([]byte(raw))
		if err != nil {
			return
		}
		if _, err := parsed.Eval(context.Background(), pred); err != nil {
			t.Fatalf("accepted expression failed to evaluate: %v", err)
		}
		encoded, err := json.Marshal(parsed)
		if err != nil {
			t.Fatalf("accepted expression failed to marshal: %v", err)
		}
		if _, err := Parse(encoded); err != nil {
			t.Fatalf("round-tripped expression rejected: %v", err)
		}
	})
}

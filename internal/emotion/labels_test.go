// internal/emotion/labels_test.go
package emotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Emotion
	}{
		{"happy", Happy},
		{"  HAPPY ", Happy},
		{"positive", Happy},
		{"negative", Sad},
		{"surprised", Excited},
		{"Surprise", Excited},
		{"anger", Angry},
		{"mad", Angry},
		{"afraid", Fear},
		{"fearful", Fear},
		{"contempt", Sad},
		{"frustration", Frustrated},
		{"smiling", Smile},
		{"joyful", Joy},
		{"furious", Neutral},
		{"", Neutral},
		{"ｈａｐｐｙ", Happy},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalizeIsTotalAndIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"happy", "Positive", "bogus", "", "  mad  ", "contempt", "NEUTRAL", "😀", "frustration"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.True(t, IsCanonical(once), "Normalize(%q)=%q is not canonical", in, once)
		assert.Equal(t, once, Normalize(string(once)), "Normalize not idempotent for %q", in)
	}
}

func TestLookupReportsRecognition(t *testing.T) {
	t.Parallel()

	e, ok := Lookup("upset")
	assert.True(t, ok)
	assert.Equal(t, Sad, e)

	e, ok = Lookup("bewildered")
	assert.False(t, ok)
	assert.Equal(t, Neutral, e)
}

func TestBucketOf(t *testing.T) {
	t.Parallel()

	for _, e := range []Emotion{Happy, Joy, Excited, Smile} {
		assert.Equal(t, Positive, BucketOf(e), string(e))
	}
	for _, e := range []Emotion{Sad, Angry, Fear, Disgust, Frustrated} {
		assert.Equal(t, Negative, BucketOf(e), string(e))
	}
	assert.Equal(t, NeutralBucket, BucketOf(Neutral))
	assert.Equal(t, NeutralBucket, BucketOf(Emotion("other")))
}

func TestTextSentiment(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Positive, TextSentiment("What a great, great day!"))
	assert.Equal(t, Negative, TextSentiment("this is awful and I hate it"))
	assert.Equal(t, NeutralBucket, TextSentiment("good but bad"))
	assert.Equal(t, NeutralBucket, TextSentiment(""))
}

package testcases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/formfiller/flow"
)

func TestCorrection_ReplacesValue(t *testing.T) {
	t.Parallel()
	filler := NewTestFiller(t)
	ctx := context.Background()

	res, err := filler.Start(ctx, flow.StartRequest{
		Utterance: "Hi, I'm Jon Smith",
		Fields:    registrationFields,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Filled["name"])

	res, err = filler.Continue(ctx, flow.ContinueRequest{
		SessionID: res.SessionID,
		Utterance: "Sorry, I misspelled it. My name is John Smith.",
	})
	require.NoError(t, err)
	assert.Equal(t, "John Smith", res.Filled["name"])
	assert.Contains(t, res.MissingRequired, "email")
}

func TestInitialValues_AreKept(t *testing.T) {
	t.Parallel()
	filler := NewTestFiller(t)

	res, err := filler.Start(context.Background(), flow.StartRequest{
		Utterance: "you can reach me at +1 415 555 0100",
		Fields:    registrationFields,
		Values:    map[string]string{"name": "Jane Doe"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", res.Filled["name"])
	assert.NotEmpty(t, res.Filled["phone"])
	assert.Equal(t, []string{"email"}, res.MissingRequired)
}

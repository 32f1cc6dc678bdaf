package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"form-relay/internal/models"
)

func parse(t *testing.T, body string) (models.Submission, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/submit-form", strings.NewReader(body))
	return parseSubmission(req)
}

func TestParseSubmissionKeepsOrder(t *testing.T) {
	sub, err := parse(t, "site_id=acme&zeta=1&alpha=2&mid=3")
	require.NoError(t, err)

	assert.Equal(t, "acme", sub.SiteID)
	require.Len(t, sub.Fields, 4)
	assert.Equal(t, []models.Field{
		{Name: "site_id", Value: "acme"},
		{Name: "zeta", Value: "1"},
		{Name: "alpha", Value: "2"},
		{Name: "mid", Value: "3"},
	}, sub.Fields)
}

func TestParseSubmissionDecoding(t *testing.T) {
	sub, err := parse(t, "site_id=acme&email=a%40b.example&full_name=Jane+Doe&message=line1%0Aline2")
	require.NoError(t, err)

	m := sub.FieldMap()
	assert.Equal(t, "a@b.example", m["email"])
	assert.Equal(t, "Jane Doe", m["full_name"])
	assert.Equal(t, "line1\nline2", m["message"])
}

func TestParseSubmissionNoSiteID(t *testing.T) {
	sub, err := parse(t, "message=hi")
	require.NoError(t, err)
	assert.Empty(t, sub.SiteID)
}

func TestParseSubmissionEmptyBody(t *testing.T) {
	sub, err := parse(t, "")
	require.NoError(t, err)
	assert.Empty(t, sub.SiteID)
	assert.Empty(t, sub.Fields)
}

func TestParseSubmissionBadEscape(t *testing.T) {
	_, err := parse(t, "site_id=%zz")
	assert.Error(t, err)
}

func TestParseSubmissionValuelessField(t *testing.T) {
	sub, err := parse(t, "site_id=acme&subscribe")
	require.NoError(t, err)
	require.Len(t, sub.Fields, 2)
	assert.Equal(t, models.Field{Name: "subscribe", Value: ""}, sub.Fields[1])
}

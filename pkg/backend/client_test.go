package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reperto-cdss-client/internal/domain"
)

type staticTokens string

func (s staticTokens) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestClient(serverURL, token string) *Client {
	return NewClient(Config{BaseURL: serverURL}, staticTokens(token), testLogger())
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]domain.Case{})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "tok-abc")
	_, err := client.ListCases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-abc", gotAuth)
}

func TestClient_NoTokenSendsUnauthenticated(t *testing.T) {
	var gotAuth string
	var hadAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, hadAuth = r.Header["Authorization"]
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Not authenticated"})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	_, err := client.ListCases(context.Background())

	assert.False(t, hadAuth, "unauthenticated request must not carry an Authorization header")
	assert.Empty(t, gotAuth)

	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Not authenticated", apiErr.Detail)
	assert.True(t, domain.IsAuthError(err))
}

func TestClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "doctor@example.com", body["email"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "jwt-token",
			"token_type":   "bearer",
			"user":         map[string]string{"name": "Dr. Mehta", "email": "doctor@example.com"},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	result, err := client.Login(context.Background(), "doctor@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", result.AccessToken)
	assert.Equal(t, "Dr. Mehta", result.User.Name)
}

func TestClient_LoginValidation(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		expected error
	}{
		{"missing email", "", "secret1", domain.ErrMissingEmail},
		{"malformed email", "doctor.example.com", "secret1", domain.ErrInvalidEmail},
		{"missing password", "doctor@example.com", "", domain.ErrMissingPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
	assert.Zero(t, requests, "validation failures must not reach the network")
}

func TestClient_SignupValidation(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	ctx := context.Background()

	assert.ErrorIs(t, client.Signup(ctx, "", "doctor@example.com", "secret1"), domain.ErrMissingName)
	assert.ErrorIs(t, client.Signup(ctx, "Dr. Mehta", "doctor@example.com", "short"), domain.ErrPasswordTooShort)
	assert.Zero(t, requests)
}

func TestClient_ParseText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ai/parse-text", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"summary": "Fever with chills",
			"risk":    "medium",
			"rubrics": []map[string]interface{}{
				{"path": "Fever > Chill", "confidence": 0.9, "evidence": "patient has fever and chills"},
				{"path": "Generalities > Heat", "confidence": 0.4, "evidence": "fever"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "tok")
	result, err := client.ParseText(context.Background(), "patient has fever and chills")
	require.NoError(t, err)

	assert.Equal(t, "Fever with chills", result.Summary)
	assert.Equal(t, domain.RiskMedium, result.Risk)
	require.Len(t, result.Rubrics, 2)
	assert.Equal(t, "Fever > Chill", result.Rubrics[0].RubricPath)
	assert.Equal(t, "patient has fever and chills", result.Rubrics[0].Rationale)
	for _, r := range result.Rubrics {
		assert.True(t, r.Selected, "suggestions default to selected")
	}
}

func TestClient_ParseText_EmptyNarrative(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client := newTestClient(server.URL, "tok")
	_, err := client.ParseText(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyNarrative)
	assert.Zero(t, requests)
}

func TestClient_Analyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cdss/analyze", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"summary": "Irritability with morning nausea",
				"tokens":  []string{"irritable", "nausea"},
				"rubrics": []map[string]interface{}{
					{"rubric": "Mind > Irritable", "confidence": 0.92, "matched": []string{"irritable"}, "rationale": "Direct token match"},
				},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "tok")
	result, err := client.Analyze(context.Background(), "irritable patient, nausea in the morning")
	require.NoError(t, err)

	assert.Equal(t, "Irritability with morning nausea", result.Summary)
	assert.Equal(t, domain.RiskUnknown, result.Risk)
	assert.Equal(t, []string{"irritable", "nausea"}, result.Tokens)
	require.Len(t, result.Rubrics, 1)
	assert.Equal(t, "Mind > Irritable", result.Rubrics[0].RubricPath)
	assert.Equal(t, []string{"irritable"}, result.Rubrics[0].MatchedTokens)
	assert.True(t, result.Rubrics[0].Selected)
}

func TestClient_Score(t *testing.T) {
	var gotBody map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cdss/score", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"remedies": []map[string]interface{}{
				{
					"remedy":    "Bryonia",
					"score":     12,
					"rationale": "Indicated based on cumulative rubric scores.",
					"rubrics": []map[string]interface{}{
						{"rubric": "Fever > Chill", "grades": []float64{3, 2}, "total": 5},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "tok")
	remedies, err := client.Score(context.Background(), []string{"Fever > Chill"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Fever > Chill"}, gotBody["rubrics"])
	require.Len(t, remedies, 1)
	assert.Equal(t, "Bryonia", remedies[0].Name)
	assert.Equal(t, 12.0, remedies[0].TotalScore)
	require.Len(t, remedies[0].Contributions, 1)
	assert.Equal(t, 5.0, remedies[0].Contributions[0].Subtotal)
}

func TestClient_Score_EmptySelection(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client := newTestClient(server.URL, "tok")
	_, err := client.Score(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrEmptySelection)
	assert.Zero(t, requests)
}

func TestClient_SaveCase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cs domain.Case
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cs))
		assert.Empty(t, cs.ID, "client must not assign case ids")
		cs.ID = "case-42"
		json.NewEncoder(w).Encode(cs)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "tok")
	saved, err := client.SaveCase(context.Background(), domain.Case{
		ID:               "stale-id",
		PatientName:      "Rajesh Kumar",
		Initials:         "RK",
		Specialty:        "General",
		Time:             "2026-08-31T10:00:00Z",
		ConfirmedRubrics: []string{"Fever > Chill"},
	})
	require.NoError(t, err)
	assert.Equal(t, "case-42", saved.ID)
	assert.Equal(t, "Rajesh Kumar", saved.PatientName)
}

func TestClient_BackendErrorWithoutDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream exploded")
	}))
	defer server.Close()

	client := newTestClient(server.URL, "tok")
	_, err := client.Me(context.Background())

	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Empty(t, apiErr.Detail)
	assert.Equal(t, "The service is unreachable. Please try again.", apiErr.UserMessage())
}

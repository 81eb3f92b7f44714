package providers

import (
	"context"

	"authgate/core"
)

const (
	ProviderMock core.Provider = "mock"
)

// Predefined test authorization codes
const (
	ValidCode1       = "mock_auth_code_1"
	ValidCode2       = "mock_auth_code_2"
	CodeWithoutEmail = "mock_auth_code_no_email"
)

// Predefined test OAuth tokens
var (
	Tokens1 = &core.ProviderTokens{
		AccessToken:  "mock_access_token_1",
		RefreshToken: "mock_refresh_token_1",
		ExpiresIn:    3600,
	}

	Tokens2 = &core.ProviderTokens{
		AccessToken:  "mock_access_token_2",
		RefreshToken: "mock_refresh_token_2",
		ExpiresIn:    3600,
	}

	Tokens3 = &core.ProviderTokens{
		AccessToken:  "mock_access_token_3",
		RefreshToken: "mock_refresh_token_3",
		ExpiresIn:    3600,
	}
)

// Predefined test profiles
var (
	Profile1 = &core.Profile{
		SubjectID:   "mock_subject_1",
		Email:       "user1@mock.test",
		DisplayName: "Mock User One",
		Photo:       "https://mock.test/avatar1.jpg",
	}

	Profile2 = &core.Profile{
		SubjectID:   "mock_subject_2",
		Email:       "user2@mock.test",
		DisplayName: "Mock User Two",
		Photo:       "https://mock.test/avatar2.jpg",
	}

	ProfileNoEmail = &core.Profile{
		SubjectID:   "mock_subject_3",
		DisplayName: "Mock User Without Email",
	}
)

// MockProvider is a test implementation of core.AuthProvider
type MockProvider struct {
	codeToTokens    map[string]*core.ProviderTokens
	accessToProfile map[string]*core.Profile

	// track method calls for verification
	ExchangeCodeCalls int
	FetchProfileCalls int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		codeToTokens: map[string]*core.ProviderTokens{
			ValidCode1:       Tokens1,
			ValidCode2:       Tokens2,
			CodeWithoutEmail: Tokens3,
		},

		accessToProfile: map[string]*core.Profile{
			Tokens1.AccessToken: Profile1,
			Tokens2.AccessToken: Profile2,
			Tokens3.AccessToken: ProfileNoEmail,
		},
	}
}

func (m *MockProvider) AuthURL(state string) string {
	return "https://mock.test/authorize?state=" + state
}

func (m *MockProvider) ExchangeCode(ctx context.Context, code string) (*core.ProviderTokens, error) {
	m.ExchangeCodeCalls++

	tokens, ok := m.codeToTokens[code]
	if !ok {
		return nil, core.ErrProviderTokenExchange
	}

	return tokens, nil
}

func (m *MockProvider) FetchProfile(ctx context.Context, accessToken string) (*core.Profile, error) {
	m.FetchProfileCalls++

	profile, ok := m.accessToProfile[accessToken]
	if !ok {
		return nil, core.ErrProviderProfile
	}

	// Copy so callers attaching tokens do not mutate the fixtures.
	p := *profile
	return &p, nil
}

func (m *MockProvider) Provider() core.Provider {
	return ProviderMock
}

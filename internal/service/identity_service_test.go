package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/errs"
	"storefront/internal/repository"
	"storefront/internal/token"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

// Mock repositories for testing
type mockIdentityRepository struct {
	identities map[uuid.UUID]*domain.Identity
	touchErr   error
}

func newMockIdentityRepository() *mockIdentityRepository {
	return &mockIdentityRepository{
		identities: make(map[uuid.UUID]*domain.Identity),
	}
}

func (m *mockIdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	for _, existing := range m.identities {
		if existing.Email == identity.Email {
			return repository.ErrIdentityAlreadyExists
		}
	}
	stored := *identity
	m.identities[identity.ID] = &stored
	return nil
}

func (m *mockIdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	for _, identity := range m.identities {
		if identity.Email == email {
			found := *identity
			return &found, nil
		}
	}
	return nil, repository.ErrIdentityNotFound
}

func (m *mockIdentityRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	identity, err := m.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !identity.IsActive {
		return nil, repository.ErrIdentityNotFound
	}
	return identity, nil
}

func (m *mockIdentityRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	identity, ok := m.identities[id]
	if !ok {
		return nil, repository.ErrIdentityNotFound
	}
	found := *identity
	return &found, nil
}

func (m *mockIdentityRepository) UpdateProfile(ctx context.Context, identity *domain.Identity) error {
	stored, ok := m.identities[identity.ID]
	if !ok {
		return repository.ErrIdentityNotFound
	}
	stored.Name = identity.Name
	stored.Email = identity.Email
	stored.UpdatedAt = identity.UpdatedAt
	return nil
}

func (m *mockIdentityRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, at time.Time) error {
	stored, ok := m.identities[id]
	if !ok {
		return repository.ErrIdentityNotFound
	}
	stored.PasswordHash = passwordHash
	stored.UpdatedAt = at
	return nil
}

func (m *mockIdentityRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if m.touchErr != nil {
		return m.touchErr
	}
	stored, ok := m.identities[id]
	if !ok {
		return repository.ErrIdentityNotFound
	}
	stored.LastLoginAt = &at
	return nil
}

func (m *mockIdentityRepository) SetActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) error {
	stored, ok := m.identities[id]
	if !ok {
		return repository.ErrIdentityNotFound
	}
	stored.IsActive = active
	stored.UpdatedAt = at
	return nil
}

func newTestIdentityService(t *testing.T, signupCode string) (IdentityService, *mockIdentityRepository) {
	t.Helper()
	repo := newMockIdentityRepository()
	tokens := token.NewManager("test-secret-key", time.Hour)
	return NewIdentityService(repo, tokens, signupCode, zaptest.NewLogger(t)), repo
}

func signupInput(name, email, password string) domain.SignupInput {
	return domain.SignupInput{Name: name, Email: email, Password: password}
}

func TestProperty_SignupStoresHashedPasswords(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 10
	properties := gopter.NewProperties(parameters)

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(email string, password string, name string) bool {
			service, repo := newTestIdentityService(t, "")
			ctx := context.Background()

			identity, _, err := service.Signup(ctx, signupInput(name, email, password), "")
			if err != nil {
				t.Logf("FAIL: Signup failed: %v", err)
				return false
			}

			stored, err := repo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("FAIL: Could not find stored identity: %v", err)
				return false
			}
			if stored.PasswordHash == password || stored.PasswordHash != identity.PasswordHash {
				t.Logf("FAIL: Stored hash does not match returned hash")
				return false
			}

			cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
			if err != nil || cost != BcryptCost {
				t.Logf("FAIL: Unexpected bcrypt cost %d: %v", cost, err)
				return false
			}

			return bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)) == nil
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{6,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_LoginTokenAuthenticatesSameIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 10
	properties := gopter.NewProperties(parameters)

	properties.Property("login token resolves to the identity that logged in", prop.ForAll(
		func(email string, password string, name string) bool {
			service, _ := newTestIdentityService(t, "")
			ctx := context.Background()

			created, _, err := service.Signup(ctx, signupInput(name, email, password), "")
			if err != nil {
				t.Logf("FAIL: Signup failed: %v", err)
				return false
			}

			loggedIn, tokenString, err := service.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}
			if loggedIn.ID != created.ID || loggedIn.LastLoginAt == nil {
				t.Logf("FAIL: Login returned wrong identity or no last login")
				return false
			}

			resolved, err := service.Authenticate(ctx, tokenString)
			if err != nil {
				t.Logf("FAIL: Authenticate failed: %v", err)
				return false
			}
			return resolved.ID == created.ID && resolved.Role == domain.RoleAdmin
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{6,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestIdentityService_SignupCode(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong code is rejected when configured", func(t *testing.T) {
		service, repo := newTestIdentityService(t, "ADMIN2024")
		_, _, err := service.Signup(ctx, signupInput("Ann", "ann@example.com", "secret1"), "nope")
		assert.ErrorIs(t, err, errs.ErrValidation)
		assert.Empty(t, repo.identities)
	})

	t.Run("matching code is accepted", func(t *testing.T) {
		service, _ := newTestIdentityService(t, "ADMIN2024")
		_, tokenString, err := service.Signup(ctx, signupInput("Ann", "ann@example.com", "secret1"), "ADMIN2024")
		require.NoError(t, err)
		assert.NotEmpty(t, tokenString)
	})

	t.Run("code is ignored when not configured", func(t *testing.T) {
		service, _ := newTestIdentityService(t, "")
		_, _, err := service.Signup(ctx, signupInput("Ann", "ann@example.com", "secret1"), "anything")
		assert.NoError(t, err)
	})
}

func TestIdentityService_SignupNeverGrantsSuperadmin(t *testing.T) {
	service, _ := newTestIdentityService(t, "")
	in := signupInput("Ann", "ann@example.com", "secret1")
	in.Role = domain.RoleSuperAdmin

	identity, _, err := service.Signup(context.Background(), in, "")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, identity.Role)
	assert.True(t, identity.IsActive)
}

func TestIdentityService_CreateIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("superadmin can be bootstrapped", func(t *testing.T) {
		service, _ := newTestIdentityService(t, "")
		in := signupInput("Root", "root@example.com", "secret1")
		in.Role = domain.RoleSuperAdmin

		identity, err := service.CreateIdentity(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleSuperAdmin, identity.Role)
	})

	t.Run("duplicate email differs only in case", func(t *testing.T) {
		service, _ := newTestIdentityService(t, "")
		_, err := service.CreateIdentity(ctx, signupInput("Ann", "ann@example.com", "secret1"))
		require.NoError(t, err)

		_, err = service.CreateIdentity(ctx, signupInput("Ann", "  ANN@example.com ", "secret1"))
		assert.ErrorIs(t, err, errs.ErrDuplicate)
	})

	t.Run("short password is rejected", func(t *testing.T) {
		service, repo := newTestIdentityService(t, "")
		_, err := service.CreateIdentity(ctx, signupInput("Ann", "ann@example.com", "12345"))

		var vErr *errs.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "password", vErr.Field)
		assert.Empty(t, repo.identities)
	})

	t.Run("password longer than 72 bytes is a validation error", func(t *testing.T) {
		service, repo := newTestIdentityService(t, "")
		_, _, err := service.Signup(ctx, signupInput("Ann", "ann@example.com", strings.Repeat("p", 73)), "")

		var vErr *errs.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "password", vErr.Field)
		assert.Empty(t, repo.identities)

		_, _, err = service.Signup(ctx, signupInput("Ann", "ann@example.com", strings.Repeat("p", 72)), "")
		assert.NoError(t, err)
	})

	t.Run("invalid email is rejected", func(t *testing.T) {
		service, _ := newTestIdentityService(t, "")
		_, err := service.CreateIdentity(ctx, signupInput("Ann", "not-an-email", "secret1"))
		assert.ErrorIs(t, err, errs.ErrValidation)
	})
}

func TestIdentityService_LoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestIdentityService(t, "")

	active, err := service.CreateIdentity(ctx, signupInput("Ann", "ann@example.com", "secret1"))
	require.NoError(t, err)
	disabled, err := service.CreateIdentity(ctx, signupInput("Bob", "bob@example.com", "secret1"))
	require.NoError(t, err)
	_, err = service.SetActive(ctx, disabled.ID, false)
	require.NoError(t, err)

	cases := map[string][2]string{
		"wrong password":  {active.Email, "wrong-password"},
		"unknown email":   {"nobody@example.com", "secret1"},
		"inactive":        {disabled.Email, "secret1"},
		"empty password":  {active.Email, ""},
		"unknown + empty": {"", ""},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, tokenString, err := service.Login(ctx, c[0], c[1])
			assert.Equal(t, errs.ErrInvalidCredentials, err)
			assert.Empty(t, tokenString)
		})
	}
}

func TestIdentityService_LoginNormalizesEmail(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestIdentityService(t, "")
	_, err := service.CreateIdentity(ctx, signupInput("Ann", "ann@example.com", "secret1"))
	require.NoError(t, err)

	_, _, err = service.Login(ctx, " Ann@Example.com", "secret1")
	assert.NoError(t, err)
}

func TestIdentityService_LoginSurvivesLastLoginFailure(t *testing.T) {
	ctx := context.Background()
	service, repo := newTestIdentityService(t, "")
	_, err := service.CreateIdentity(ctx, signupInput("Ann", "ann@example.com", "secret1"))
	require.NoError(t, err)

	repo.touchErr = errors.New("connection reset")
	identity, tokenString, err := service.Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, tokenString)
	assert.Nil(t, identity.LastLoginAt)
}

func TestIdentityService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestIdentityService(t, "")
	identity, err := service.CreateIdentity(ctx, signupInput("Ann", "ann@example.com", "secret1"))
	require.NoError(t, err)

	err = service.ChangePassword(ctx, identity.ID, "wrong", "newsecret")
	assert.ErrorIs(t, err, errs.ErrWrongPassword)
	assert.ErrorIs(t, err, errs.ErrValidation)

	err = service.ChangePassword(ctx, identity.ID, "secret1", "short")
	assert.ErrorIs(t, err, errs.ErrValidation)

	var vErr *errs.ValidationError
	err = service.ChangePassword(ctx, identity.ID, "secret1", strings.Repeat("p", 73))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "password", vErr.Field)

	err = service.ChangePassword(ctx, uuid.New(), "secret1", "newsecret")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, service.ChangePassword(ctx, identity.ID, "secret1", "newsecret"))

	_, _, err = service.Login(ctx, "ann@example.com", "secret1")
	assert.ErrorIs(t, err, errs.ErrInvalidCredentials)
	_, _, err = service.Login(ctx, "ann@example.com", "newsecret")
	assert.NoError(t, err)
}

func TestIdentityService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	service, repo := newTestIdentityService(t, "")
	ann, err := service.CreateIdentity(ctx, signupInput("Ann", "ann@example.com", "secret1"))
	require.NoError(t, err)
	_, err = service.CreateIdentity(ctx, signupInput("Bob", "bob@example.com", "secret1"))
	require.NoError(t, err)

	t.Run("email taken by another identity", func(t *testing.T) {
		email := "BOB@example.com"
		_, err := service.UpdateProfile(ctx, ann.ID, domain.ProfilePatch{Email: &email})
		assert.ErrorIs(t, err, errs.ErrDuplicate)
	})

	t.Run("only supplied fields change", func(t *testing.T) {
		name := "  Annabel "
		updated, err := service.UpdateProfile(ctx, ann.ID, domain.ProfilePatch{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Annabel", updated.Name)
		assert.Equal(t, "ann@example.com", updated.Email)
		assert.Equal(t, "Annabel", repo.identities[ann.ID].Name)
	})

	t.Run("keeping the own email is allowed", func(t *testing.T) {
		email := "ann@example.com"
		_, err := service.UpdateProfile(ctx, ann.ID, domain.ProfilePatch{Email: &email})
		assert.NoError(t, err)
	})

	t.Run("blank name is rejected", func(t *testing.T) {
		name := "   "
		_, err := service.UpdateProfile(ctx, ann.ID, domain.ProfilePatch{Name: &name})
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("unknown identity", func(t *testing.T) {
		name := "Ghost"
		_, err := service.UpdateProfile(ctx, uuid.New(), domain.ProfilePatch{Name: &name})
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestIdentityService_Authenticate(t *testing.T) {
	ctx := context.Background()
	service, repo := newTestIdentityService(t, "")
	identity, tokenString, err := service.Signup(ctx, signupInput("Ann", "ann@example.com", "secret1"), "")
	require.NoError(t, err)

	resolved, err := service.Authenticate(ctx, tokenString)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, resolved.ID)

	_, err = service.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = service.SetActive(ctx, identity.ID, false)
	require.NoError(t, err)
	_, err = service.Authenticate(ctx, tokenString)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	delete(repo.identities, identity.ID)
	_, err = service.Authenticate(ctx, tokenString)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestIdentityService_SetActive(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestIdentityService(t, "")
	identity, err := service.CreateIdentity(ctx, signupInput("Ann", "ann@example.com", "secret1"))
	require.NoError(t, err)

	updated, err := service.SetActive(ctx, identity.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, err = service.SetActive(ctx, uuid.New(), true)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

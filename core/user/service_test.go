package user_test

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	"github.com/trezcool/darasa/storage/database"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

func setup(t *testing.T) (user.ServiceInterface, *validator.Validate) {
	t.Helper()

	conf := &core.Config{
		AppName:          "Darasa",
		DefaultFromEmail: "noreply@localhost",
		Storage:          core.StorageConfig{Quota: 1 << 20},
	}
	db := database.New(inmemdb.Open(conf.Storage.Quota), core.NopLogger{})

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	emailsvc.ClearSentMessages()
	svc := user.NewService(database.NewUserRepository(db), emailsvc.NewConsoleServiceMock(conf), conf)
	return svc, validate
}

func Test_userService_signupFlow(t *testing.T) {
	svc, validate := setup(t)

	s := user.Signup{Name: " Alice ", Email: "ALICE@Example.com ", Role: user.RoleStudent}
	require.NoError(t, s.Validate(validate, svc))
	assert.Equal(t, "alice@example.com", s.Email)

	otp, err := svc.InitiateSignup(s)
	require.NoError(t, err)
	require.Len(t, otp, 6)

	// the code was emailed
	require.Len(t, emailsvc.SentMessages, 1)
	assert.Contains(t, emailsvc.SentMessages[0].Body, otp)
	assert.Equal(t, "alice@example.com", emailsvc.SentMessages[0].To[0].Address)

	// wrong code is refused
	wrong := "000000"
	if wrong == otp {
		wrong = "000001"
	}
	_, err = svc.VerifySignup(user.VerifySignup{Email: s.Email, OTP: wrong})
	assert.Equal(t, user.ErrOTPInvalid, err)

	usr, err := svc.VerifySignup(user.VerifySignup{Email: s.Email, OTP: otp})
	require.NoError(t, err)
	assert.Equal(t, "Alice", usr.Name)
	assert.Equal(t, user.RoleStudent, usr.Role)

	// the code is single-use
	_, err = svc.VerifySignup(user.VerifySignup{Email: s.Email, OTP: otp})
	assert.Equal(t, user.ErrOTPInvalid, err)

	// the account is now live
	got, err := svc.Authenticate("Alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
}

func Test_userService_uniqueness(t *testing.T) {
	svc, validate := setup(t)

	_, err := svc.Create(user.NewUser{Name: "Alice", Email: "alice@test.cd", Role: user.RoleStudent})
	require.NoError(t, err)

	nu := user.NewUser{Name: "Imposter", Email: "alice@test.cd", Role: user.RoleStudent}
	err = nu.Validate(validate, svc)
	require.Error(t, err)
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError, got %T", err)
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "email", vErr.Fields[0].Field)
}

func Test_userService_Authenticate(t *testing.T) {
	svc, _ := setup(t)

	usr, err := svc.Create(user.NewUser{Name: "Alice", Email: "alice@test.cd", Role: user.RoleStudent})
	require.NoError(t, err)

	got, err := svc.Authenticate(" ALICE@test.cd ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	_, err = svc.Authenticate("nobody@test.cd")
	assert.Equal(t, user.ErrNotFound, err)
}

func Test_userService_roleValidation(t *testing.T) {
	svc, validate := setup(t)

	nu := user.NewUser{Name: "Alice", Email: "alice@test.cd", Role: "superuser"}
	err := nu.Validate(validate, svc)
	require.Error(t, err)
	_, ok := err.(validator.ValidationErrors)
	assert.True(t, ok, "want validator.ValidationErrors, got %T", err)
}

func Test_userService_UpdateContact(t *testing.T) {
	svc, _ := setup(t)

	usr, err := svc.Create(user.NewUser{Name: "Alice", Email: "alice@test.cd", Role: user.RoleStudent})
	require.NoError(t, err)

	usr, err = svc.UpdateContact(usr.ID, " 555-0101 ", " 1 Main St ")
	require.NoError(t, err)
	assert.Equal(t, "555-0101", usr.PhoneNumber)
	assert.Equal(t, "1 Main St", usr.Address)
}

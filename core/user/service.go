package user

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
	ErrOTPInvalid  = errors.New("invalid or expired verification code")
)

const signupOTPTimeout = 10 * time.Minute

type (
	Repository interface {
		CheckEmailUniqueness(email string, excludedUsers ...User) error
		CreateUser(usr User) (User, error)
		QueryAllUsers() ([]User, error)
		QueryUsersByRole(role string) ([]User, error)
		GetUserByID(id string) (User, error)
		GetUserByEmail(email string) (User, error)
		UpdateUser(usr User) (User, error)
		DeleteUsersByID(ids ...string) error
	}

	ServiceInterface interface {
		CheckUniqueness(email string, exclUsers ...User) error
		Create(nu NewUser) (User, error)
		InitiateSignup(s Signup) (string, error)
		VerifySignup(vs VerifySignup) (User, error)
		Authenticate(email string) (User, error)
		QueryAll() ([]User, error)
		QueryByRole(role string) ([]User, error)
		GetByID(id string) (User, error)
		GetByEmail(email string) (User, error)
		Update(id string, uu UpdateUser) (User, error)
		UpdateContact(id, phoneNumber, address string) (User, error)
		Delete(ids ...string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config

		mu      sync.Mutex
		pending map[string]pendingSignup // keyed by email
	}

	pendingSignup struct {
		signup    Signup
		otp       string
		expiresAt time.Time
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) ServiceInterface {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		pending: make(map[string]pendingSignup),
	}
}

func (svc *service) CheckUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateUser(usr)
}

// InitiateSignup stages an account request and emails a 6-digit OTP to the address.
// The OTP is returned so that local/debug setups can surface it to the user directly.
func (svc *service) InitiateSignup(s Signup) (string, error) {
	otp, err := generateOTP()
	if err != nil {
		return "", errors.Wrap(err, "generating OTP")
	}

	svc.mu.Lock()
	svc.pending[s.Email] = pendingSignup{
		signup:    s,
		otp:       otp,
		expiresAt: time.Now().Add(signupOTPTimeout),
	}
	svc.mu.Unlock()

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: s.Name, Address: s.Email}},
		Subject: "Confirm your account",
		Body:    fmt.Sprintf("Hi %s,\n\nYour %s verification code is: %s\n\nIt expires in %d minutes.", s.Name, svc.conf.AppName, otp, int(signupOTPTimeout.Minutes())),
	})
	return otp, nil
}

// VerifySignup redeems a pending signup; the OTP is single-use.
func (svc *service) VerifySignup(vs VerifySignup) (User, error) {
	svc.mu.Lock()
	p, ok := svc.pending[vs.Email]
	if ok && p.otp == vs.OTP && time.Now().Before(p.expiresAt) {
		delete(svc.pending, vs.Email)
	} else {
		ok = false
	}
	svc.mu.Unlock()

	if !ok {
		return User{}, ErrOTPInvalid
	}
	return svc.Create(NewUser{Name: p.signup.Name, Email: p.signup.Email, Role: p.signup.Role})
}

// Authenticate looks the user up in the locally seeded list; there is no password.
func (svc *service) Authenticate(email string) (User, error) {
	return svc.repo.GetUserByEmail(core.CleanString(email, true /* lower */))
}

func (svc *service) QueryAll() ([]User, error) {
	return svc.repo.QueryAllUsers()
}

func (svc *service) QueryByRole(role string) ([]User, error) {
	return svc.repo.QueryUsersByRole(role)
}

func (svc *service) GetByID(id string) (User, error) {
	return svc.repo.GetUserByID(id)
}

func (svc *service) GetByEmail(email string) (User, error) {
	return svc.repo.GetUserByEmail(core.CleanString(email, true /* lower */))
}

func (svc *service) Update(id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(id)
	if err != nil {
		return User{}, err
	}
	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.Role = uu.Role
	if uu.PhoneNumber != "" {
		usr.PhoneNumber = uu.PhoneNumber
	}
	if uu.Address != "" {
		usr.Address = uu.Address
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(usr)
}

// UpdateContact persists enrollment contact details on the user.
func (svc *service) UpdateContact(id, phoneNumber, address string) (User, error) {
	usr, err := svc.repo.GetUserByID(id)
	if err != nil {
		return User{}, err
	}
	usr.PhoneNumber = core.CleanString(phoneNumber)
	usr.Address = core.CleanString(address)
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(usr)
}

// Delete removes users from the active set; historical session and notification
// records keep referencing their ids.
func (svc *service) Delete(ids ...string) error {
	return svc.repo.DeleteUsersByID(ids...)
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

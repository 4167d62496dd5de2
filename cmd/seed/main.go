package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/bgrizzle97/socialMedia/internal/auth"
	"github.com/bgrizzle97/socialMedia/internal/config"
	"github.com/bgrizzle97/socialMedia/internal/db"
	apperrors "github.com/bgrizzle97/socialMedia/internal/errors"
	"github.com/bgrizzle97/socialMedia/internal/logging"
	"github.com/bgrizzle97/socialMedia/internal/model"
	"github.com/bgrizzle97/socialMedia/internal/repository"
	"github.com/bgrizzle97/socialMedia/internal/service"
)

// SeedFile is the YAML document accepted by the seed command.
type SeedFile struct {
	Users       []SeedUser    `yaml:"users"`
	Friendships [][2]string   `yaml:"friendships"`
	Requests    []SeedRequest `yaml:"requests"`
}

// SeedUser is one account. An empty password is prompted for.
type SeedUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// SeedRequest is a pending friend request between two seeded usernames.
type SeedRequest struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// userStore is the part of the credential store the seeder needs.
type userStore interface {
	Create(ctx context.Context, name, email, password string) (*model.User, error)
	FindByName(ctx context.Context, name string) (*model.User, bool, error)
}

// Summary counts what a seed run changed.
type Summary struct {
	Created     int
	Existing    int
	Friendships int
	Requests    int
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		file     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and friendships from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), file, logLevel)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "seed.yaml", "Seed file path (YAML)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}

func run(ctx context.Context, path, logLevel string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logging.New(os.Stdout, logLevel)
	cfg := config.Load()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	seed, err := loadSeed(f)
	if err != nil {
		return err
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	if err := db.Migrate(ctx, gormDB, false, log); err != nil {
		return err
	}

	friendRepo := repository.NewFriendshipRepository(gormDB)
	credentials := service.NewCredentialStore(repository.NewUserRepository(gormDB), auth.NewPasswordHasher(cfg.BcryptCost), cfg.ResetTokenTTL, log)
	friends := service.NewFriendshipService(friendRepo, credentials, nil, log)

	summary, err := apply(ctx, seed, credentials, friends, promptPassword, log)
	if err != nil {
		return err
	}
	log.Info(ctx, "seed completed",
		"created", summary.Created,
		"existing", summary.Existing,
		"friendships", summary.Friendships,
		"requests", summary.Requests,
	)
	return nil
}

func loadSeed(r io.Reader) (*SeedFile, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(username string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no password for %q and stdin is not a terminal", username)
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

// apply creates missing users, then friendships, then pending requests.
// Re-running a seed is a no-op.
func apply(ctx context.Context, seed *SeedFile, users userStore, friends service.FriendshipService, prompt func(string) (string, error), log logging.Logger) (Summary, error) {
	var summary Summary
	ids := make(map[string]*model.User, len(seed.Users))

	for _, u := range seed.Users {
		existing, ok, err := users.FindByName(ctx, u.Username)
		if err != nil {
			return summary, err
		}
		if ok {
			ids[u.Username] = existing
			summary.Existing++
			continue
		}

		password := u.Password
		if password == "" {
			if password, err = prompt(u.Username); err != nil {
				return summary, err
			}
		}
		created, err := users.Create(ctx, u.Username, u.Email, password)
		if err != nil {
			return summary, fmt.Errorf("create %s: %w", u.Username, err)
		}
		ids[u.Username] = created
		summary.Created++
	}

	lookup := func(name string) (*model.User, error) {
		if u, ok := ids[name]; ok {
			return u, nil
		}
		u, ok, err := users.FindByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("unknown user %q", name)
		}
		ids[name] = u
		return u, nil
	}

	for _, pair := range seed.Friendships {
		a, err := lookup(pair[0])
		if err != nil {
			return summary, err
		}
		b, err := lookup(pair[1])
		if err != nil {
			return summary, err
		}
		err = friends.SendRequest(ctx, a.ID, b.ID)
		switch {
		case errors.Is(err, apperrors.ErrAlreadyFriends):
			continue
		case err != nil && !errors.Is(err, apperrors.ErrRequestAlreadySent):
			return summary, fmt.Errorf("befriend %s and %s: %w", pair[0], pair[1], err)
		}
		if err := friends.AcceptRequest(ctx, b.ID, a.ID); err != nil {
			return summary, fmt.Errorf("befriend %s and %s: %w", pair[0], pair[1], err)
		}
		summary.Friendships++
	}

	for _, req := range seed.Requests {
		from, err := lookup(req.From)
		if err != nil {
			return summary, err
		}
		to, err := lookup(req.To)
		if err != nil {
			return summary, err
		}
		err = friends.SendRequest(ctx, from.ID, to.ID)
		switch {
		case err == nil:
			summary.Requests++
		case errors.Is(err, apperrors.ErrRequestAlreadySent), errors.Is(err, apperrors.ErrAlreadyFriends):
			log.Debug(ctx, "request already present", "from", req.From, "to", req.To)
		default:
			return summary, fmt.Errorf("request %s -> %s: %w", req.From, req.To, err)
		}
	}

	return summary, nil
}

package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/auth"
	"github.com/mrlokans/storefront/internal/config"
	"github.com/mrlokans/storefront/internal/database"
	"github.com/mrlokans/storefront/internal/database/profiles"
	"github.com/mrlokans/storefront/internal/entities"
)

type CreateUserCommand struct {
	Email        string
	Password     string
	Name         string
	Phone        string
	Role         string
	DatabasePath string
	BcryptCost   int

	out io.Writer
}

func NewCreateUserCommand() *CreateUserCommand {
	return &CreateUserCommand{out: os.Stdout}
}

func (cmd *CreateUserCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)

	fs.StringVar(&cmd.Email, "email", "", "Email address of the account (required)")
	fs.StringVar(&cmd.Password, "password", "", "Initial password, at least 8 characters (required)")
	fs.StringVar(&cmd.Name, "name", "", "Display name (defaults to the email's local part)")
	fs.StringVar(&cmd.Phone, "phone", "", "Phone number used for payments")
	fs.StringVar(&cmd.Role, "role", string(entities.RoleAdmin), "Role: reader, publisher or admin")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.IntVar(&cmd.BcryptCost, "bcrypt-cost", 12, "bcrypt cost for the password hash")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-user [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create an account with an explicit role, typically the first administrator.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s create-user -email admin@example.com -password 'change me now'\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s create-user -email pub@example.com -password 'change me now' -role publisher\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Email == "" || cmd.Password == "" {
		fs.Usage()
		return fmt.Errorf("email and password are required")
	}
	if !entities.Role(cmd.Role).Valid() {
		return fmt.Errorf("unknown role %q", cmd.Role)
	}

	return nil
}

func (cmd *CreateUserCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath, zerolog.Nop())
	if err != nil {
		return err
	}
	defer db.Close()

	service := auth.NewService(profiles.NewRepository(db.DB), config.Auth{BcryptCost: cmd.BcryptCost}, zerolog.Nop())
	profile, err := service.CreateProfile(context.Background(), auth.SignupInput{
		Email:       cmd.Email,
		Password:    cmd.Password,
		DisplayName: cmd.Name,
		Phone:       cmd.Phone,
	}, entities.Role(cmd.Role))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(cmd.out, "Created %s %s (id %d)\n", profile.Role, profile.Email, profile.ID)
	return nil
}

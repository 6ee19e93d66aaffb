package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rigforge/rigforge/internal/model"
)

var (
	seedUsername string
	seedPassword string
)

// seedAdminCmd bootstraps the first admin account plus an invitation code, so
// a fresh deployment can be registered against.
var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the initial admin account and invitation code",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(seedPassword) < 6 {
			return eris.New("password must be at least 6 characters")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		existing, err := st.GetUserByUsername(ctx, seedUsername)
		if err != nil {
			return err
		}
		if existing != nil {
			return eris.Errorf("user %q already exists", seedUsername)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
		if err != nil {
			return eris.Wrap(err, "hash password")
		}

		admin := &model.User{
			ID:           uuid.New().String(),
			Username:     seedUsername,
			PasswordHash: string(hash),
			Role:         model.RoleAdmin,
			Status:       "active",
			CreatedAt:    time.Now().UTC(),
		}
		if err := st.CreateUser(ctx, admin); err != nil {
			return err
		}

		inv := &model.InvitationCode{
			Code:      uuid.New().String()[:8],
			CreatorID: admin.ID,
			MaxUses:   10,
			Status:    "active",
			CreatedAt: time.Now().UTC(),
		}
		if err := st.CreateInvitation(ctx, inv); err != nil {
			return err
		}

		zap.L().Info("admin seeded",
			zap.String("username", admin.Username),
			zap.String("invitation_code", inv.Code),
		)
		return nil
	},
}

func init() {
	seedAdminCmd.Flags().StringVar(&seedUsername, "username", "admin", "admin username")
	seedAdminCmd.Flags().StringVar(&seedPassword, "password", "", "admin password (required)")
	_ = seedAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(seedAdminCmd)
}

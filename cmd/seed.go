package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/salesvox/conversa/internal/model"
)

// seedFile is the YAML shape consumed by the seed command: tenants with
// their users and pipeline stages. Seeding is idempotent, so it can run on
// every deploy.
type seedFile struct {
	Tenants []struct {
		ID    string `yaml:"id"`
		Name  string `yaml:"name"`
		Users []struct {
			ID    string `yaml:"id"`
			Name  string `yaml:"name"`
			Email string `yaml:"email"`
		} `yaml:"users"`
		PipelineStages []struct {
			Name        string  `yaml:"name"`
			StageOrder  int     `yaml:"stage_order"`
			Probability float64 `yaml:"probability"`
			IsActive    *bool   `yaml:"is_active"`
		} `yaml:"pipeline_stages"`
	} `yaml:"tenants"`
}

var seedPath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed tenants, users and pipeline stages from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(seedPath)
		if err != nil {
			return eris.Wrapf(err, "read seed file %s", seedPath)
		}
		var seed seedFile
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return eris.Wrap(err, "parse seed file")
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		for _, t := range seed.Tenants {
			tenant := &model.Tenant{ID: t.ID, Name: t.Name}
			if err := st.EnsureTenant(ctx, tenant); err != nil {
				return err
			}
			for _, u := range t.Users {
				user := &model.User{ID: u.ID, TenantID: tenant.ID, Name: u.Name, Email: u.Email}
				if err := st.EnsureUser(ctx, user); err != nil {
					return err
				}
			}
			for _, ps := range t.PipelineStages {
				active := true
				if ps.IsActive != nil {
					active = *ps.IsActive
				}
				stage := &model.PipelineStage{
					TenantID:    tenant.ID,
					Name:        ps.Name,
					StageOrder:  ps.StageOrder,
					Probability: ps.Probability,
					IsActive:    active,
				}
				if err := st.CreatePipelineStage(ctx, stage); err != nil {
					return err
				}
			}
			zap.L().Info("tenant seeded",
				zap.String("tenant_id", tenant.ID),
				zap.Int("users", len(t.Users)),
				zap.Int("pipeline_stages", len(t.PipelineStages)),
			)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPath, "file", "seed.yaml", "path to the seed YAML file")
	rootCmd.AddCommand(seedCmd)
}

package records

import (
	"context"

	"github.com/medicore/portal/pkg/common/logger"
)

type seedPatient struct {
	name      string
	modules   []string
	histories []string
	logs      []string
}

var demoPatients = []seedPatient{
	{
		name:    "Liao",
		modules: []string{"Heart Monitoring Model"},
		histories: []string{
			"2024-08-01: Diagnosis - Heart check normal",
			"2024-08-15: ECG - Minor arrhythmia",
		},
		logs: []string{
			"2024-09-01: Heart rate 72",
			"2024-09-02: Heart rate 75",
			"2024-09-03: Heart rate 80",
		},
	},
	{
		name:      "Patient B",
		modules:   []string{"Blood Pressure Model"},
		histories: []string{"2024-08-05: Diagnosis - Blood pressure high"},
		logs: []string{
			"2024-09-01: BP 140/90",
			"2024-09-02: BP 138/88",
		},
	},
	{
		name:      "Patient C",
		modules:   []string{"Basic Health Model"},
		histories: []string{"2024-08-10: Diagnosis - Normal"},
		logs: []string{
			"2024-09-01: Heart rate 70",
			"2024-09-02: Heart rate 68",
		},
	},
}

// SeedDemo loads the demo roster. Histories and logs are only inserted for
// patients that have none yet, so repeated startups do not duplicate rows.
func SeedDemo(ctx context.Context, store Store) error {
	if _, err := store.EnsureDoctor(ctx, "Doctor Wu"); err != nil {
		return err
	}
	for _, seed := range demoPatients {
		patient, err := store.EnsurePatient(ctx, seed.name)
		if err != nil {
			return err
		}
		if err := store.SetModules(ctx, seed.name, seed.modules); err != nil {
			return err
		}

		histories, err := store.ListHistories(ctx, patient.ID)
		if err != nil {
			return err
		}
		if len(histories) == 0 {
			for _, content := range seed.histories {
				if _, err := store.AppendHistory(ctx, patient.ID, content); err != nil {
					return err
				}
			}
		}

		logs, err := store.ListLogs(ctx, patient.ID)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			for _, content := range seed.logs {
				if _, err := store.AppendLog(ctx, patient.ID, content); err != nil {
					return err
				}
			}
		}
	}
	logger.Log.WithField("patients", len(demoPatients)).Info("Demo data seeded")
	return nil
}

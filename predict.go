package main

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kartoza/solvency/internal/i18n"
	"github.com/kartoza/solvency/internal/model"
	"github.com/kartoza/solvency/internal/models"
	"github.com/kartoza/solvency/internal/store"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score one client record from the command line",
	Long: `Score one client record with the configured artifacts and print the decision.

Examples:
  solvency predict                                  # Default record with KNN
  solvency predict --age 52 --marital 2 --income 3100 --model log_reg
  solvency predict --json --lang en`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

var (
	predictRecord  = model.DefaultRecord()
	predictMarital int
	predictModel   string
	predictLang    string
	predictJSON    bool
)

func init() {
	f := predictCmd.Flags()
	f.IntVar(&predictRecord.Age, "age", predictRecord.Age, fmt.Sprintf("Age (%d-%d)", model.MinAge, model.MaxAge))
	f.IntVar(&predictMarital, "marital", int(predictRecord.Marital), "Marital status: 1 single, 2 married, 3 divorced")
	f.Float64Var(&predictRecord.Expenses, "expenses", predictRecord.Expenses, "Monthly expenses (€)")
	f.Float64Var(&predictRecord.Income, "income", predictRecord.Income, "Monthly income (€)")
	f.Float64Var(&predictRecord.Amount, "amount", predictRecord.Amount, "Credit amount (€)")
	f.Float64Var(&predictRecord.Price, "price", predictRecord.Price, "Purchase price (€)")
	f.StringVar(&predictModel, "model", "", "Model: knn or log_reg (default from config)")
	f.StringVar(&predictLang, "lang", "", "Output language: fr or en (default from config)")
	f.BoolVarP(&predictJSON, "json", "j", false, "Output the result as JSON")
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg := appConfig

	name := predictModel
	if name == "" {
		name = cfg.Model.Default
	}
	sel, err := store.ParseSelector(name)
	if err != nil {
		return err
	}

	rec := predictRecord
	rec.Marital = model.MaritalStatus(predictMarital)
	if err := rec.Validate(); err != nil {
		return err
	}

	_, pipe, err := loadPipeline(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	res, err := pipe.Predict(cmd.Context(), rec, sel)
	if err != nil {
		return err
	}

	lang := predictLang
	if lang == "" {
		lang = cfg.UI.Language
	}
	loc := i18n.New(lang)

	if predictJSON {
		out, err := json.MarshalIndent(models.PredictResponse{
			Label:       string(res.Label),
			Solvent:     res.Solvent(),
			Probability: res.Probability,
			Percent:     loc.Percent(res.Probability),
			Message:     loc.Verdict(res),
			Model:       string(res.Model),
			ModelName:   res.Model.DisplayName(),
			Cached:      res.Cached,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	if res.Solvent() {
		pterm.Success.Println(loc.Verdict(res))
	} else {
		pterm.Error.Println(loc.Verdict(res))
	}
	pterm.Info.Println(loc.ModelUsed(res.Model.DisplayName()))
	return nil
}

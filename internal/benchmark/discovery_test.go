package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverColumns(t *testing.T) {
	t.Run("groups percentile columns per metric", func(t *testing.T) {
		columns := []string{
			"Specialty", "Region",
			"TCC_P25", "TCC_P50", "TCC_P75", "TCC_P90",
			"wRVU_P50", "wRVU_P90",
		}
		descs := DiscoverColumns(columns)
		require.Len(t, descs, 2)

		tcc := descs[0]
		assert.Equal(t, "tcc", tcc.Name)
		assert.Equal(t, CategoryCompensation, tcc.Category)
		assert.Equal(t, "TCC_P25", tcc.Columns[P25])
		assert.Equal(t, "TCC_P50", tcc.Columns[P50])
		assert.Equal(t, "TCC_P75", tcc.Columns[P75])
		assert.Equal(t, "TCC_P90", tcc.Columns[P90])

		wrvu := descs[1]
		assert.Equal(t, "wrvu", wrvu.Name)
		assert.Equal(t, CategoryProductivity, wrvu.Category)
		assert.True(t, wrvu.HasPercentile(P50))
		assert.True(t, wrvu.HasPercentile(P90))
		assert.False(t, wrvu.HasPercentile(P25))
	})

	t.Run("keeps first appearance order", func(t *testing.T) {
		descs := DiscoverColumns([]string{"b_p50", "a_p50", "c_p50"})
		require.Len(t, descs, 3)
		assert.Equal(t, "b", descs[0].Name)
		assert.Equal(t, "a", descs[1].Name)
		assert.Equal(t, "c", descs[2].Name)
	})

	t.Run("attaches metric scoped sample size columns", func(t *testing.T) {
		columns := []string{"specialty", "tcc_p50", "tcc_n_orgs", "tcc_n_incumbents", "wrvu_p50"}
		descs := DiscoverColumns(columns)
		require.Len(t, descs, 2)
		assert.Equal(t, "tcc_n_orgs", descs[0].Columns[FieldNOrgs])
		assert.Equal(t, "tcc_n_incumbents", descs[0].Columns[FieldNIncumbents])
		assert.Empty(t, descs[1].Columns[FieldNOrgs])
	})

	t.Run("count columns without a metric are ignored", func(t *testing.T) {
		descs := DiscoverColumns([]string{"specialty", "tcc_p50", "salary_n_orgs"})
		require.Len(t, descs, 1)
		assert.Equal(t, "tcc", descs[0].Name)
	})

	t.Run("no metric columns yields empty", func(t *testing.T) {
		assert.Empty(t, DiscoverColumns([]string{"specialty", "variable", "p50"}))
	})
}

func TestClassifyVariable(t *testing.T) {
	tests := []struct {
		name string
		want VariableCategory
	}{
		{"tcc", CategoryCompensation},
		{"total_cash_compensation", CategoryCompensation},
		{"base_salary", CategoryCompensation},
		{"retention_bonus", CategoryCompensation},
		{"wrvu", CategoryProductivity},
		{"work_rvus", CategoryProductivity},
		{"patient_encounters", CategoryProductivity},
		{"panel_size", CategoryProductivity},
		{"cfte", CategoryProductivity},
		{"tcc_per_rvu", CategoryRatio},
		{"tcc_per_wrvu", CategoryRatio},
		{"comp_per_encounter", CategoryRatio},
		{"conversion_factor", CategoryRatio},
		{"cf", CategoryRatio},
		{"collections_to_comp_ratio", CategoryRatio},
		{"tenure_years", CategoryOther},
		{"turnover", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyVariable(tt.name))
		})
	}
}

// A compensation-per-productivity metric must classify as a ratio even
// though its name contains compensation keywords.
func TestClassifyVariableRatioPrecedence(t *testing.T) {
	assert.Equal(t, CategoryRatio, ClassifyVariable("TCC_per_RVU"))

	descs := DiscoverColumns([]string{"TCC_per_RVU_p50", "TCC_p50"})
	require.Len(t, descs, 2)
	assert.Equal(t, "tcc_per_rvu", descs[0].Name)
	assert.Equal(t, CategoryRatio, descs[0].Category)
	assert.Equal(t, "tcc", descs[1].Name)
	assert.Equal(t, CategoryCompensation, descs[1].Category)
}

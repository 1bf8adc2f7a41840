package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/resultportal/internal/model"
)

// ExportResults builds export-ready records for every student in b.
func ExportResults(ctx context.Context, b Backend) ([]model.StudentResult, error) {
	students, err := b.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	results := make([]model.StudentResult, 0, len(students))
	for _, st := range students {
		results = append(results, model.StudentResult{
			RollNo:    st.RollNo,
			Name:      st.Name,
			Post:      st.Post,
			DOB:       st.DOB.UTC().Format(dobLayout),
			Active:    st.Active,
			HasOMR:    st.HasOMR(),
			Result:    st.Result,
			CreatedAt: st.CreatedAt,
		})
	}
	return results, nil
}

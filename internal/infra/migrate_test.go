package infra

import "testing"

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/pickup?sslmode=disable":   "pgx5://u:p@localhost:5432/pickup?sslmode=disable",
		"postgresql://u:p@localhost:5432/pickup?sslmode=disable": "pgx5://u:p@localhost:5432/pickup?sslmode=disable",
		"pgx5://u:p@localhost/pickup":                            "pgx5://u:p@localhost/pickup",
	}
	for in, want := range cases {
		if got := migrateURL(in); got != want {
			t.Errorf("migrateURL(%q) = %q, want %q", in, got, want)
		}
	}
}

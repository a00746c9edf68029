package migrations

import "testing"

func TestPgxURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/qaflow?sslmode=disable", "pgx5://u:p@localhost:5432/qaflow?sslmode=disable"},
		{"postgresql://localhost/qaflow", "pgx5://localhost/qaflow"},
		{"pgx5://localhost/qaflow", "pgx5://localhost/qaflow"},
	}
	for _, tc := range cases {
		if got := pgxURL(tc.in); got != tc.want {
			t.Fatalf("pgxURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

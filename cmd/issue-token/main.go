// issue-token prints a bearer token for an actor. Authentication itself lives
// outside this service; the token only carries identity and role.
//
// Usage:
//   API_SECRET=... go run ./cmd/issue-token --id 7 --name "Ravi" --role employee
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/printworks_backend/models"
	"github.com/mmdatafocus/printworks_backend/utils"
)

func main() {
	id := flag.Int("id", 0, "Required: user id (> 0)")
	name := flag.String("name", "", "Display name")
	role := flag.String("role", models.RoleEmployee, "admin | manager | employee")
	flag.Parse()

	if *id <= 0 {
		fmt.Fprintln(os.Stderr, "--id is required")
		os.Exit(1)
	}
	r := strings.ToLower(strings.TrimSpace(*role))
	switch r {
	case models.RoleAdmin, models.RoleManager, models.RoleEmployee:
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(1)
	}

	token, err := utils.JwtGenerate(utils.Actor{ID: *id, Name: *name, Role: r})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

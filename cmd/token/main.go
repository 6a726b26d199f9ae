// Command token issues staff tokens for the cashier and admin dashboards.
//
//	token --sub u-17 --name "Marta Gil" --role cashier
package main

import (
	"fmt"
	"os"
	"time"

	"pharmacy-store/config"
	"pharmacy-store/internal/auth"

	flag "github.com/spf13/pflag"
)

func main() {
	cfg := config.Load()

	subject := flag.String("sub", "", "staff member identifier")
	name := flag.String("name", "", "display name")
	role := flag.String("role", string(auth.RoleCashier), "cashier or admin")
	ttl := flag.Duration("ttl", cfg.Auth.TokenTTL, "token lifetime")
	flag.Parse()

	token, err := auth.NewIssuer(cfg.Auth.JWTSecret, *ttl).Issue(*subject, *name, auth.Role(*role))
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "home view %s, expires %s\n",
		auth.HomeView(auth.Role(*role)), time.Now().Add(*ttl).Format(time.RFC3339))
}

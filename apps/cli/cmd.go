package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/portal"
	"github.com/trezcool/masomo-portal/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp         = errors.New("help provided")
	errNotSignedIn  = errors.New("not signed in")
	errNotPermitted = errors.New("permission not granted")
)

type commandLine struct {
	client *auth.Client
	portal *portal.Portal
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -email EMAIL [-remember] - sign in; the password will be prompted")
	fmt.Fprintln(cli.out, "  logout                         - sign out")
	fmt.Fprintln(cli.out, "  whoami                         - show the signed-in user")
	fmt.Fprintln(cli.out, "  refresh                        - renew the session token")
	fmt.Fprintln(cli.out, "  can -permission PERMISSION     - check a permission of the signed-in user")
	fmt.Fprintln(cli.out, "  roles                          - list roles and their permissions")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := cli.newFlagSet("login")
	loginEmail := loginCmd.String("email", "", "The user's email. The password will be prompted next.")
	loginRemember := loginCmd.Bool("remember", false, "Keep the session after this machine restarts.")

	canCmd := cli.newFlagSet("can")
	canPerm := canCmd.String("permission", "", "The permission to check, eg. manage_users.")

	switch args[1] {
	case "login":
		if err := parse(loginCmd, args[2:]); err != nil {
			return err
		}
		if *loginEmail == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *loginEmail, string(pwd), *loginRemember)
	case "logout":
		return cli.logout(ctx)
	case "whoami":
		return cli.whoami()
	case "refresh":
		return cli.refresh(ctx)
	case "can":
		if err := parse(canCmd, args[2:]); err != nil {
			return err
		}
		if *canPerm == "" {
			canCmd.Usage()
			return errHelp
		}
		return cli.can(user.Permission(strings.TrimSpace(*canPerm)))
	case "roles":
		return cli.roles()
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) login(ctx context.Context, email, pwd string, remember bool) error {
	res := cli.portal.Login(ctx, email, pwd, remember)
	if !res.OK {
		return errors.New(res.Message())
	}
	usr, _ := cli.portal.User()
	fmt.Fprintf(cli.out, "Signed in as %s (%s)\n", usr.DisplayName(), usr.Role.Title())
	return nil
}

func (cli *commandLine) logout(ctx context.Context) error {
	cli.portal.Logout(ctx)
	fmt.Fprintln(cli.out, "Signed out")
	return nil
}

func (cli *commandLine) whoami() error {
	usr, ok := cli.portal.User()
	if !ok {
		return errNotSignedIn
	}
	fmt.Fprintf(cli.out, "%s <%s>\n", usr.DisplayName(), usr.Email)
	fmt.Fprintf(cli.out, "role: %s\n", usr.Role.Title())
	fmt.Fprintln(cli.out, "permissions:")
	for _, perm := range cli.portal.Permissions().Slice() {
		fmt.Fprintf(cli.out, "  %s\n", perm)
	}
	return nil
}

func (cli *commandLine) refresh(ctx context.Context) error {
	if err := cli.client.Refresh(ctx); err != nil {
		return errors.New(auth.Message(err))
	}
	fmt.Fprintln(cli.out, "Session refreshed")
	return nil
}

func (cli *commandLine) can(perm user.Permission) error {
	if !cli.portal.IsAuthenticated() {
		return errNotSignedIn
	}
	if !cli.portal.HasPermission(perm) {
		fmt.Fprintln(cli.out, "no")
		return errNotPermitted
	}
	fmt.Fprintln(cli.out, "yes")
	return nil
}

func (cli *commandLine) roles() error {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tPERMISSIONS")
	for _, role := range user.Roles {
		perms := user.RolePermissions(role.Value)
		names := make([]string, len(perms))
		for i, p := range perms {
			names[i] = string(p)
		}
		fmt.Fprintf(w, "%s\t%s\n", role.Name, strings.Join(names, ", "))
	}
	return w.Flush()
}

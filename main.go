package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/chainguard-dev/clog"

	"github.com/securebox/securebox/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	level := slog.LevelWarn
	if os.Getenv("SECUREBOX_VERBOSE") != "" {
		level = slog.LevelDebug
	}
	logger := clog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ctx = clog.WithLogger(ctx, logger)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(ctx, os.Args[2:])
	case "add":
		runAdd(ctx, os.Args[2:])
	case "view", "show":
		runView(ctx, os.Args[2:])
	case "ls", "list":
		runLs(ctx, os.Args[2:])
	case "edit":
		runEdit(ctx, os.Args[2:])
	case "rm":
		runRm(ctx, os.Args[2:])
	case "verify":
		runVerify(ctx, os.Args[2:])
	case "passwd":
		runPasswd(ctx, os.Args[2:])
	case "rotate":
		runRotate(ctx, os.Args[2:])
	case "upload":
		runUpload(ctx, os.Args[2:])
	case "download":
		runDownload(ctx, os.Args[2:])
	case "diff":
		runDiff(ctx, os.Args[2:])
	case "creds":
		runCreds(ctx, os.Args[2:])
	case "signout":
		runSignout(ctx, os.Args[2:])
	case "keyring":
		runKeyring(ctx, os.Args[2:])
	case "paths":
		runPaths(ctx, os.Args[2:])
	case "version", "-v", "--version":
		cmd.PrintVersion()
	case "completion":
		runCompletion(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runInit(_ context.Context, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	useKeyring := fs.Bool("keyring", false, "Save the password to the OS keyring")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Init(*useKeyring)
}

func runAdd(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "Container name")
	data := fs.String("data", "", "Container data (stdin when omitted)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	// Allow "securebox add <name>" without flags
	if *name == "" && len(fs.Args()) > 0 {
		*name = fs.Args()[0]
	}

	cmd.Add(ctx, *name, *data)
}

func runView(_ context.Context, args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.View(parseID(fs.Args(), "view"))
}

func runLs(_ context.Context, args []string) {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.List()
}

func runEdit(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	name := fs.String("name", "", "New container name")
	data := fs.String("data", "", "New container data")
	stdin := fs.Bool("stdin", false, "Read new data from stdin")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Edit(ctx, parseID(fs.Args(), "edit"), *name, *data, *stdin)
}

func runRm(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if len(fs.Args()) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: securebox rm <id> [id...]")
		os.Exit(1)
	}
	ids := make([]int, 0, len(fs.Args()))
	for _, arg := range fs.Args() {
		id, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid container id %q\n", arg)
			os.Exit(1)
		}
		ids = append(ids, id)
	}

	cmd.Remove(ctx, ids)
}

func runVerify(_ context.Context, args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	recover := fs.Bool("recover", false, "Open a damaged vault and report what survives")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Verify(*recover)
}

func runPasswd(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Passwd(ctx)
}

func runRotate(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rotate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Rotate(ctx)
}

func runUpload(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	remote := fs.String("remote", "", "Remote backup name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Upload(ctx, *remote)
}

func runDownload(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	remote := fs.String("remote", "", "Remote backup name")
	keep := fs.Bool("keep", false, "Keep the downloaded file instead of replacing the vault")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Download(ctx, *remote, *keep)
}

func runDiff(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	remote := fs.String("remote", "", "Remote backup name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Diff(ctx, *remote)
}

func runCreds(_ context.Context, args []string) {
	fs := flag.NewFlagSet("creds", flag.ExitOnError)
	endpoint := fs.String("endpoint", "", "Backup service endpoint URL")
	account := fs.String("account", "", "Backup account name")
	token := fs.String("token", "", "Access token (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Creds(*endpoint, *account, *token)
}

func runSignout(_ context.Context, args []string) {
	fs := flag.NewFlagSet("signout", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.SignOut()
}

func runKeyring(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: securebox keyring <save|delete|status>")
		os.Exit(1)
	}

	switch args[0] {
	case "save":
		cmd.KeyringSave()
	case "delete", "rm":
		cmd.KeyringDelete()
	case "status":
		cmd.KeyringStatus()
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func runPaths(_ context.Context, args []string) {
	fs := flag.NewFlagSet("paths", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Paths()
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: securebox completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func parseID(args []string, command string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: securebox %s <id>\n", command)
		os.Exit(1)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid container id %q\n", args[0])
		os.Exit(1)
	}
	return id
}

func printUsage() {
	fmt.Println("securebox - Encrypted secret storage with cloud backup")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  securebox <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init        Create a new encrypted vault")
	fmt.Println("  add         Store a new container")
	fmt.Println("  view        Show a container's data")
	fmt.Println("  ls          List containers")
	fmt.Println("  edit        Update a container")
	fmt.Println("  rm          Remove containers")
	fmt.Println("  verify      Verify vault integrity")
	fmt.Println("  passwd      Change the master password")
	fmt.Println("  rotate      Regenerate encryption keys")
	fmt.Println("  upload      Upload the vault to the cloud remote")
	fmt.Println("  download    Restore the vault from the cloud remote")
	fmt.Println("  diff        Compare the vault with the remote backup")
	fmt.Println("  creds       Store cloud credentials in the vault")
	fmt.Println("  signout     Remove cloud credentials")
	fmt.Println("  keyring     Manage the password in the OS keyring")
	fmt.Println("  paths       Show file locations")
	fmt.Println("  version     Show version")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  securebox init                  # Create new vault")
	fmt.Println("  securebox add mail              # Store a secret named mail")
	fmt.Println("  securebox view 1                # Show container 1")
	fmt.Println("  securebox upload                # Back up to the cloud")
	fmt.Println()
	fmt.Println("Use 'securebox help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "init":
		fmt.Println("securebox init [--keyring]")
		fmt.Println()
		fmt.Println("Creates a new encrypted vault file.")
		fmt.Println("Prompts for a master password that encrypts everything.")
		fmt.Println("The password is not stored anywhere unless --keyring is given.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --keyring   Save the password to the OS keyring")
	case "add":
		fmt.Println("securebox add [--name <name>] [--data <data>] [<name>]")
		fmt.Println()
		fmt.Println("Stores a new container in the vault.")
		fmt.Println("Data is read from stdin when --data is omitted.")
		fmt.Println("An omitted name defaults to 'Container N'.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  securebox add mail")
		fmt.Println("  securebox add --name wifi --data 'pass=secret'")
		fmt.Println("  cat id_rsa | securebox add ssh-key")
	case "view":
		fmt.Println("securebox view <id>")
		fmt.Println()
		fmt.Println("Decrypts and prints one container.")
	case "ls":
		fmt.Println("securebox ls")
		fmt.Println()
		fmt.Println("Lists containers with ids and sizes. Data is not shown.")
	case "edit":
		fmt.Println("securebox edit <id> [--name <name>] [--data <data>] [--stdin]")
		fmt.Println()
		fmt.Println("Updates a container's name and/or data.")
		fmt.Println("Omitted fields keep their current value.")
	case "rm":
		fmt.Println("securebox rm <id> [id...]")
		fmt.Println()
		fmt.Println("Removes containers from the vault. Ids are never reused.")
	case "verify":
		fmt.Println("securebox verify [--recover]")
		fmt.Println()
		fmt.Println("Checks every container and the vault seal against the")
		fmt.Println("master password. With --recover, a partially damaged vault")
		fmt.Println("is opened anyway and the surviving containers are reported.")
	case "passwd":
		fmt.Println("securebox passwd")
		fmt.Println()
		fmt.Println("Changes the master password.")
		fmt.Println("Re-encrypts every container under fresh keys. The change is")
		fmt.Println("atomic: an interrupted run leaves the old vault intact.")
	case "rotate":
		fmt.Println("securebox rotate")
		fmt.Println()
		fmt.Println("Regenerates all encryption keys under the same password and")
		fmt.Println("re-encrypts every container. Use after suspected key exposure.")
	case "upload":
		fmt.Println("securebox upload [--remote <name>]")
		fmt.Println()
		fmt.Println("Uploads the encrypted vault file to the configured cloud")
		fmt.Println("remote. Requires stored credentials, see 'securebox creds'.")
	case "download":
		fmt.Println("securebox download [--remote <name>] [--keep]")
		fmt.Println()
		fmt.Println("Fetches the remote backup, verifies it opens with the master")
		fmt.Println("password and replaces the local vault. With --keep the")
		fmt.Println("verified file is left next to the vault instead.")
	case "diff":
		fmt.Println("securebox diff [--remote <name>]")
		fmt.Println()
		fmt.Println("Downloads the remote backup and shows a unified diff of the")
		fmt.Println("container contents against the local vault.")
	case "creds":
		fmt.Println("securebox creds [--endpoint <url>] [--account <name>] [--token <token>]")
		fmt.Println()
		fmt.Println("Stores cloud backup credentials encrypted inside the vault.")
		fmt.Println("Missing values are prompted for; the token prompt does not echo.")
	case "signout":
		fmt.Println("securebox signout")
		fmt.Println()
		fmt.Println("Removes the stored cloud credentials and token from the vault.")
	case "keyring":
		fmt.Println("securebox keyring <save|delete|status>")
		fmt.Println()
		fmt.Println("Manages the master password entry in the OS keyring.")
		fmt.Println("A stored password unlocks the vault without prompting.")
	case "paths":
		fmt.Println("securebox paths")
		fmt.Println()
		fmt.Println("Shows the resolved data directory and vault file location.")
		fmt.Println("Does not require a password.")
	case "completion":
		fmt.Println("securebox completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}

package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_securebox() {
    local cur prev words cword
    _init_completion || return

    local commands="init add view ls edit rm verify passwd rotate upload download diff creds signout keyring paths version help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        init)
            COMPREPLY=($(compgen -W "--keyring" -- "$cur"))
            ;;
        add)
            COMPREPLY=($(compgen -W "--name --data" -- "$cur"))
            ;;
        edit)
            COMPREPLY=($(compgen -W "--name --data --stdin" -- "$cur"))
            ;;
        verify)
            COMPREPLY=($(compgen -W "--recover" -- "$cur"))
            ;;
        upload|diff)
            COMPREPLY=($(compgen -W "--remote" -- "$cur"))
            ;;
        download)
            COMPREPLY=($(compgen -W "--remote --keep" -- "$cur"))
            ;;
        creds)
            COMPREPLY=($(compgen -W "--endpoint --account --token" -- "$cur"))
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _securebox securebox
`

const zshCompletion = `#compdef securebox

_securebox() {
    local -a commands
    commands=(
        'init:Create a new encrypted vault'
        'add:Store a new container'
        'view:Show a container'
        'ls:List containers'
        'edit:Update a container'
        'rm:Remove containers'
        'verify:Verify vault integrity'
        'passwd:Change master password'
        'rotate:Regenerate encryption keys'
        'upload:Upload vault to the cloud remote'
        'download:Restore vault from the cloud remote'
        'diff:Compare vault with the remote backup'
        'creds:Store cloud credentials'
        'signout:Remove cloud credentials'
        'keyring:Manage password in OS keyring'
        'paths:Show file locations'
        'version:Show version'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'securebox commands' commands
            ;;
        args)
            case "${words[2]}" in
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'securebox commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_securebox "$@"
`

const fishCompletion = `# securebox fish completions

set -l commands init add view ls edit rm verify passwd rotate upload download diff creds signout keyring paths version help completion

complete -c securebox -f

complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a init -d 'Create a new encrypted vault'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a add -d 'Store a new container'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a view -d 'Show a container'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a ls -d 'List containers'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a edit -d 'Update a container'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a rm -d 'Remove containers'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a verify -d 'Verify vault integrity'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a passwd -d 'Change master password'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a rotate -d 'Regenerate encryption keys'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a upload -d 'Upload vault to the cloud remote'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a download -d 'Restore vault from the cloud remote'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a diff -d 'Compare vault with the remote backup'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a creds -d 'Store cloud credentials'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a signout -d 'Remove cloud credentials'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage password in OS keyring'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a paths -d 'Show file locations'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a version -d 'Show version'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c securebox -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

complete -c securebox -n "__fish_seen_subcommand_from keyring" -a "save delete status"
complete -c securebox -n "__fish_seen_subcommand_from help" -a "$commands"
complete -c securebox -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`

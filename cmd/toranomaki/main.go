// Command toranomaki is the reference CLI for the binary dictionary format:
// it builds JMdict.dat from a jmdict-simplified JSON export and verifies an
// existing one.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/toranomaki/toranomaki/pkg/dictfile"
	"github.com/toranomaki/toranomaki/pkg/dictionary"
)

const dictFileName = "JMdict.dat"

// DirectoryNotFoundError marks a failure to resolve the installation
// directory (§6): the candidate installDir settled on does not exist. That
// is the env override when it is set (no other directory is tried), else
// the current working directory once the binary's own directory failed.
type DirectoryNotFoundError struct {
	Dir string
}

func (e *DirectoryNotFoundError) Error() string {
	return fmt.Sprintf("toranomaki: installation directory %q does not exist", e.Dir)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: toranomaki build [jmdict-simplified.json]")
	fmt.Fprintln(os.Stderr, "       toranomaki verify")
	fmt.Fprintln(os.Stderr, "if the source path is omitted, the latest jmdict-simplified release is downloaded into the installation directory unless jmdict-eng-common.json is already there")
}

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() > 1 {
		usage()
		os.Exit(2)
	}

	dir, err := installDir()
	if err != nil {
		log.Fatalf("build: %v", err)
	}

	srcPath := fs.Arg(0)
	if srcPath == "" {
		srcPath = filepath.Join(dir, "jmdict-eng-common.json")
		if err := dictionary.EnsureDictionary(context.Background(), srcPath); err != nil {
			log.Fatalf("build: fetching jmdict-simplified: %v", err)
		}
	}

	raw, err := dictionary.LoadJMdictSimplified(srcPath)
	if err != nil {
		log.Fatalf("build: loading %s: %v", srcPath, err)
	}

	entries, err := dictionary.BuildEntries(raw)
	if err != nil {
		log.Fatalf("build: converting entries: %v", err)
	}

	destPath := filepath.Join(dir, dictFileName)
	out, err := os.Create(destPath)
	if err != nil {
		log.Fatalf("build: creating %s: %v", destPath, err)
	}
	defer out.Close()

	if err := dictfile.Write(out, entries); err != nil {
		log.Fatalf("build: writing %s: %v", destPath, err)
	}

	fmt.Printf("wrote %s (%d entries)\n", destPath, len(entries))
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	fs.Parse(args)

	dir, err := installDir()
	if err != nil {
		log.Fatalf("verify: %v", err)
	}

	path := filepath.Join(dir, dictFileName)
	r, err := dictfile.Open(path)
	if err != nil {
		log.Fatalf("verify: opening %s: %v", path, err)
	}
	defer r.Close()

	checked, err := r.VerifyWords()
	if err != nil {
		log.Fatalf("verify: %v", err)
	}

	fmt.Printf("%s: %d words round-trip cleanly\n", path, checked)
}

// installDir resolves the installation directory per §6: environment
// override, then the directory containing the running binary, then the
// current working directory. The chosen directory must exist.
func installDir() (string, error) {
	if dir := os.Getenv("TORANOMAKI_DIR"); dir != "" {
		return checkDir(dir)
	}

	if exe, err := os.Executable(); err == nil {
		if dir, err := checkDir(filepath.Dir(exe)); err == nil {
			return dir, nil
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return checkDir(cwd)
}

func checkDir(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", &DirectoryNotFoundError{Dir: dir}
	}
	return dir, nil
}

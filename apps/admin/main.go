package main

import (
	"log"
	"os"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/storage/database"
	sqlitedb "github.com/trezcool/darasa/storage/database/sqlite"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	store, err := sqlitedb.Open(conf)
	errAndDie(err)
	defer store.Close()
	db := database.New(store, &stdLogger{std: logger})

	// start CLI
	cli := commandLine{
		usrRepo: database.NewUserRepository(db),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}

// stdLogger adapts the standard logger to core.Logger for the DB layer.
type stdLogger struct {
	std *log.Logger
}

var _ core.Logger = (*stdLogger)(nil)

func (l *stdLogger) Enable(bool) {}

func (l *stdLogger) Debug(msg string, args ...interface{}) { l.print(msg, args) }
func (l *stdLogger) Info(msg string, args ...interface{})  { l.print(msg, args) }
func (l *stdLogger) Warn(msg string, args ...interface{})  { l.print(msg, args) }
func (l *stdLogger) Error(msg string, args ...interface{}) { l.print(msg, args) }
func (l *stdLogger) Fatal(msg string, args ...interface{}) { l.print(msg, args); l.std.Fatal(msg) }

func (l *stdLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

package runlog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oncoml/cna2gex/eval"
	"go-ml.dev/pkg/zorros"
	"go-ml.dev/pkg/zorros/zlog"
)

const schema = `
create table if not exists runs (
	id integer primary key autoincrement,
	name text not null,
	cancer_type text not null,
	seed integer not null,
	started_at timestamp not null
);
create table if not exists epochs (
	run_id integer not null references runs(id),
	epoch integer not null,
	train_loss real not null,
	val_loss real not null
);
create table if not exists metrics (
	run_id integer not null references runs(id),
	split text not null,
	cancer_type text not null,
	mse real,
	corr real,
	p_value real
);`

/*
Log records training progress and final evaluation metrics of a run in
a sqlite database, one row per epoch and per stratified metric group.
It implements model.EpochSink.
*/
type Log struct {
	db    *sql.DB
	runID int64
}

/*
Open opens (creating if needed) the run database at path and registers
a new run in it.
*/
func Open(path, name, cancerType string, seed int64) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, zorros.Trace(err)
	}
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, zorros.Wrapf(err, "failed to create runlog schema: %v", err.Error())
	}
	res, err := db.Exec(`insert into runs(name, cancer_type, seed, started_at) values(?, ?, ?, ?)`,
		name, cancerType, seed, time.Now().UTC())
	if err != nil {
		db.Close()
		return nil, zorros.Trace(err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		db.Close()
		return nil, zorros.Trace(err)
	}
	return &Log{db: db, runID: runID}, nil
}

/*
Epoch records the losses of one epoch. The dashboard sink is advisory:
a failed insert is logged and training continues.
*/
func (l *Log) Epoch(epoch int, trainLoss, valLoss float64) {
	_, err := l.db.Exec(`insert into epochs(run_id, epoch, train_loss, val_loss) values(?, ?, ?, ?)`,
		l.runID, epoch, trainLoss, valLoss)
	if err != nil {
		zlog.Warning(fmt.Sprintf("runlog: failed to record epoch %d: %v", epoch, err))
	}
}

/*
RecordMetrics stores the stratified metric rows of one evaluated split.
*/
func (l *Log) RecordMetrics(split string, groups []eval.Group) error {
	for _, g := range groups {
		_, err := l.db.Exec(`insert into metrics(run_id, split, cancer_type, mse, corr, p_value) values(?, ?, ?, ?, ?, ?)`,
			l.runID, split, g.CancerType, g.MSE, g.Corr, g.PValue)
		if err != nil {
			return zorros.Trace(err)
		}
	}
	return nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

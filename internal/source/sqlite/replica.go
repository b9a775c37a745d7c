package sqlite

import (
	"database/sql/driver"

	libsql "github.com/tursodatabase/go-libsql"
)

// replicaConn is the slice of the libsql connector the manager needs: a
// database/sql connector with an explicit remote-sync step.
type replicaConn interface {
	driver.Connector
	Sync() error
	Close() error
}

type libsqlConn struct {
	*libsql.Connector
}

func (c libsqlConn) Sync() error {
	_, err := c.Connector.Sync()
	return err
}

func openReplica(path, url, authToken string) (replicaConn, error) {
	c, err := libsql.NewEmbeddedReplicaConnector(path, url, libsql.WithAuthToken(authToken))
	if err != nil {
		return nil, err
	}
	return libsqlConn{c}, nil
}

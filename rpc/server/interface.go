package server

import (
	"github.com/ValentinKolb/dss/lib/dss"
	"github.com/ValentinKolb/dss/lib/store"
	"github.com/ValentinKolb/dss/rpc/common"
	"github.com/puzpuzpuz/xsync/v3"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a Message and a store as parameters.
	// It returns a Message as a response
	// If an error occurs, it should be set in the response
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}

// namespaces caches one dss.NamespacedStore per namespace. An adapter serves a single
// shard, so the namespace alone identifies the wrapped store.
type namespaces struct {
	stores *xsync.MapOf[string, *dss.NamespacedStore]
}

func newNamespaces() namespaces {
	return namespaces{stores: xsync.NewMapOf[string, *dss.NamespacedStore]()}
}

// scope returns s itself for requests without namespace and the namespaced view of s otherwise.
func (n namespaces) scope(req *common.Message, s store.IStore) (store.IStore, error) {
	if req.Namespace == "" {
		return s, nil
	}
	if ns, ok := n.stores.Load(req.Namespace); ok {
		return ns, nil
	}

	ns, err := dss.New(s, req.Namespace)
	if err != nil {
		return nil, err
	}
	ns, _ = n.stores.LoadOrStore(req.Namespace, ns)
	return ns, nil
}

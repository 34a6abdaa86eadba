// Package entitycontext builds multi-hop entity context for a query. It
// grows a context tree from seed entities discovered in the graph,
// scores and filters the entities involved, and flattens the tree into
// ordered root-to-leaf entity chains that explain why a set of chunks is
// relevant to the query.
package entitycontext

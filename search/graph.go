package search

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Joker2770/rapfi/game"
	"github.com/awalterschulze/gographviz"
)

type rootMoveNode struct {
	RootMove
	Side game.Color
}

// ToDot renders the root move statistics of the last Search call as a
// graphviz digraph: the root position fans out to one node per root
// move, best move first.
func (s *Searcher) ToDot(board game.Board) string {
	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		panic(err)
	}
	g.SetDir(true)

	g.AddNode("G", "root", map[string]string{
		"fontname": "Monaco",
		"shape":    "box",
		"label":    fmt.Sprintf("\"%s to move, %d nodes\"", board.SideToMove(), s.nodes),
	})

	var buf bytes.Buffer
	for i := range s.rootMoves {
		n := rootMoveNode{RootMove: s.rootMoves[i], Side: board.SideToMove()}
		rootTmpl.Execute(&buf, n)
		attrs := map[string]string{
			"fontname": "Monaco",
			"shape":    "none",
			"label":    buf.String(),
		}
		id := fmt.Sprintf("m%d", i)
		g.AddNode("G", id, attrs)
		g.AddEdge("root", id, true, nil)
		buf.Reset()
	}
	return g.String()
}

const rootTmplRaw = `<
<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">
<TR><TD>Move</TD><TD>{{.Pos}}</TD></TR>
<TR><TD>Side</TD><TD>{{.Side}}</TD></TR>
<TR><TD>Value</TD><TD>{{.Value}}</TD></TR>
<TR><TD>PrevValue</TD><TD>{{.PrevValue}}</TD></TR>
<TR><TD>Nodes</TD><TD>{{.Nodes}}</TD></TR>
</TABLE>
>
`

var rootTmpl *template.Template

func init() {
	rootTmpl = template.Must(template.New("rootmove").Parse(rootTmplRaw))
}

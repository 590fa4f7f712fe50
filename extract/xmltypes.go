package extract

import "wikidat.dev/wiki"

// The types below mirror just the MediaWiki dump elements this pipeline
// reads. They exist only to let encoding/xml decode one <page> or <logitem>
// subtree at a time via Decoder.DecodeElement; the whole document is never
// materialized (see extractor.go).

type contributorXML struct {
	ID       *int64 `xml:"id"`
	Username string `xml:"username"`
	IP       string `xml:"ip"`
	Deleted  string `xml:"deleted,attr"`
}

func (c *contributorXML) toContributor() wiki.Contributor {
	if c == nil || c.Deleted != "" {
		return wiki.Contributor{Kind: wiki.ContributorAbsent}
	}
	if c.IP != "" {
		return wiki.Contributor{Kind: wiki.ContributorAnonymous, IP: c.IP}
	}
	if c.ID != nil {
		if *c.ID == 0 && c.Username != "" {
			return wiki.Contributor{Kind: wiki.ContributorMissingID, Username: c.Username}
		}
		return wiki.Contributor{Kind: wiki.ContributorRegistered, UserID: *c.ID, Username: c.Username}
	}
	return wiki.Contributor{Kind: wiki.ContributorAbsent}
}

type redirectXML struct {
	Title string `xml:"title,attr"`
}

type revisionXML struct {
	ID          int64            `xml:"id"`
	ParentID    int64            `xml:"parentid"`
	Timestamp   string           `xml:"timestamp"`
	Contributor *contributorXML  `xml:"contributor"`
	Minor       *struct{}        `xml:"minor"`
	Comment     string           `xml:"comment"`
	Text        *revisionTextXML `xml:"text"`
}

type revisionTextXML struct {
	Value string `xml:",chardata"`
}

type pageXML struct {
	Title        string        `xml:"title"`
	Namespace    int           `xml:"ns"`
	ID           int64         `xml:"id"`
	Redirect     *redirectXML  `xml:"redirect"`
	Restrictions string        `xml:"restrictions"`
	Revisions    []revisionXML `xml:"revision"`
}

type logItemXML struct {
	ID          int64           `xml:"id"`
	Timestamp   string          `xml:"timestamp"`
	Contributor *contributorXML `xml:"contributor"`
	Type        string          `xml:"type"`
	Action      string          `xml:"logitem_action"`
	ActionAlt   string          `xml:"action"`
	Title       string          `xml:"logtitle"`
	Params      string          `xml:"params"`
	Comment     string          `xml:"comment"`
}

func (l logItemXML) action() string {
	if l.Action != "" {
		return l.Action
	}
	return l.ActionAlt
}

package plugin

import "fmt"

// MarkdownLink renders a documentation link.
type MarkdownLink struct {
	URL   string
	Label string
}

func (l MarkdownLink) String() string {
	return fmt.Sprintf("[%s](%s)", l.Label, l.URL)
}

// Documentation links shared by the plugin descriptions.
var (
	LinkSOQL = MarkdownLink{
		URL:   "https://developer.salesforce.com/docs/atlas.en-us.soql_sosl.meta/soql_sosl/sforce_api_calls_soql.htm",
		Label: "SOQL",
	}
	LinkObjectReference = MarkdownLink{
		URL:   "https://developer.salesforce.com/docs/atlas.en-us.object_reference.meta/object_reference/sforce_api_objects_list.htm",
		Label: "Salesforce Object Reference",
	}
	LinkBulkAPI = MarkdownLink{
		URL:   "https://developer.salesforce.com/docs/atlas.en-us.api_asynch.meta/api_asynch/asynch_api_intro.htm",
		Label: "Bulk API",
	}
	LinkSecurityToken = MarkdownLink{
		URL:   "https://help.salesforce.com/s/articleView?id=sf.user_security_token.htm",
		Label: "Reset Your Security Token",
	}
)

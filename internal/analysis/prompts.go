/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Analysis Prompts
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package analysis

const analysisSystemPrompt = "You are an expert RFP analyst for OPF. You must reference SPECIFIC company information, " +
	"projects, clients, and capabilities from the provided context. Avoid generic statements."

const analysisPrompt = `Analyze this RFP against our SPECIFIC company capabilities and past projects.

RFP DETAILS:
- Project Name: %s
- Organization: %s
- Project Focus: %s
- RFP Content: %s

OUR COMPANY CAPABILITIES AND EXPERIENCE:
%s

Reference specific projects, clients or capabilities from the company context above. Avoid generic statements.

Respond with a single JSON object with these keys:
{
  "fit_assessment": "High/Medium/Low - based on our specific capabilities",
  "key_strengths": "Projects, clients, or expertise from our context that relate to this RFP",
  "gaps_challenges": "Areas where we need additional resources or expertise",
  "recommendations": "Recommendation based on our actual experience",
  "resource_requirements": "Team members or resources we would need",
  "risk_assessment": "Risks based on our actual experience",
  "competitive_position": "How we compare based on our actual projects and expertise"
}`

const metadataSystemPrompt = "You are an expert at extracting structured information from RFP documents. " +
	"Extract ONLY information that is explicitly stated."

const metadataPrompt = `Extract ONLY the information that is clearly stated in the RFP text below.

RFP TEXT TO ANALYZE:
%s

If a field is not present or unclear, use null.

Return JSON with these fields:
{
  "organization_group": "The organization or group issuing the RFP",
  "country": "The country where the project will be implemented",
  "region": "The region or geographic area",
  "industry": "The industry sector",
  "project_focus": "The main focus or objective of the project",
  "opf_gap_size": "The size or scope of OPF gaps mentioned",
  "opf_gaps": "Specific OPF gaps or areas mentioned",
  "deliverables": "The expected deliverables",
  "posting_contact": "Contact information for the posting",
  "potential_experts": "Required expertise or expert profiles",
  "project_cost": "The project budget, as a number only",
  "currency": "The currency for the project cost",
  "specific_staffing_needs": "Specific staffing requirements",
  "due_date": "The due date in YYYY-MM-DD format (YYYY-01-01 if only a year, YYYY-MM-01 if year and month)"
}`

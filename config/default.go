package config

// DefaultOrgYAML is a small publishing house used by `agentorg init` and the examples.
const DefaultOrgYAML = `name: Storybook Press
root:
  name: Publisher
  role:
    name: Publisher
    description: Owns the publishing goal, splits it between editorial and design, and signs off the result.
  environment: office
  subordinates:
    - name: Editor
      role:
        name: Editor
        description: Plans the manuscript, briefs the writer and reviews drafts.
      environment: office
      subordinates:
        - name: Writer
          role:
            name: Writer
            description: Writes children's stories in clear, warm language.
          environment: office
    - name: ArtDirector
      role:
        name: Art Director
        description: Defines the visual style and coordinates illustration.
      environment: studio
      subordinates:
        - name: Illustrator
          role:
            name: Illustrator
            description: Produces illustration briefs and sketches for each scene.
          environment: studio
environments:
  - id: office
    description: Editorial office with the shared manuscript board.
    initial_state:
      manuscript: empty
  - id: studio
    description: Design studio with the sketch wall.
    initial_state:
      sketches: 0
sops:
  - name: picture_book
    description: Produce a short picture book.
    steps:
      - goal: "Write a 300 word story about {{.goal}}"
        role: Writer
      - goal: "Review and tighten the story about {{.goal}}"
        role: Editor
`
